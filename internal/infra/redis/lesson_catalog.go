package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// LessonLoader fetches a cohort's lessons from a backing store (e.g., Postgres).
type LessonLoader interface {
	LoadLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error)
}

var errStaleLoad = errors.New("catalog invalidated during load")

// LessonCatalog caches each cohort's lessons in Redis and falls back to a loader on miss.
// Lessons are stored as JSON:   SET catalog:cohort:{cohortID}:lessons <json> PX <ttl>
// Invalidations bump a counter: INCR catalog:cohort:{cohortID}:gen
// A load only fills the cache if the counter did not move while it ran.
type LessonCatalog struct {
	client *redis.Client
	loader LessonLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLessonCatalog(client *redis.Client, loader LessonLoader, ttl time.Duration) *LessonCatalog {
	return &LessonCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LessonCatalog) Lessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	if lessons, ok := c.cached(ctx, cohortID); ok {
		return lessons, nil
	}

	result, err, _ := c.sf.Do(cohortID, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if lessons, ok := c.cached(ctx, cohortID); ok {
			return lessons, nil
		}

		gen, err := c.generation(ctx, cohortID)
		if err != nil {
			gen = -1
		}
		lessons, err := c.loader.LoadLessons(ctx, cohortID)
		if err != nil {
			return nil, err
		}
		if gen >= 0 {
			// best-effort; a failed or stale fill just means the next call loads again
			_ = c.fill(ctx, cohortID, gen, lessons)
		}
		return lessons, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Lesson), nil
}

// Invalidate drops the cached lessons and fences out in-flight loads.
func (c *LessonCatalog) Invalidate(ctx context.Context, cohortID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(cohortID))
		pipe.Del(ctx, c.lessonsKey(cohortID))
		return nil
	})
	c.sf.Forget(cohortID)
	return err
}

func (c *LessonCatalog) cached(ctx context.Context, cohortID string) ([]domain.Lesson, bool) {
	raw, err := c.client.Get(ctx, c.lessonsKey(cohortID)).Bytes()
	if err != nil {
		return nil, false
	}
	var lessons []domain.Lesson
	if err := json.Unmarshal(raw, &lessons); err != nil {
		return nil, false
	}
	return lessons, true
}

func (c *LessonCatalog) generation(ctx context.Context, cohortID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(cohortID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LessonCatalog) fill(ctx context.Context, cohortID string, gen int64, lessons []domain.Lesson) error {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(lessons)
	if err != nil {
		return err
	}
	genKey := c.genKey(cohortID)
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.lessonsKey(cohortID), raw, ttl)
			return nil
		})
		return err
	}, genKey)
}

func (c *LessonCatalog) lessonsKey(cohortID string) string {
	return "catalog:cohort:" + cohortID + ":lessons"
}

func (c *LessonCatalog) genKey(cohortID string) string {
	return "catalog:cohort:" + cohortID + ":gen"
}

func (c *LessonCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

