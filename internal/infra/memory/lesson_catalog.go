package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// LessonLoader fetches a cohort's lessons from a backing store.
type LessonLoader interface {
	LoadLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error)
}

// LessonCatalog caches lessons per cohort with TTL to avoid repeated store hits.
// Mutations must call Invalidate; entries are never refreshed in place.
type LessonCatalog struct {
	loader LessonLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu          sync.Mutex
	rnd         *rand.Rand
	cache       map[string]cachedLessons
	generations map[string]uint64
}

type cachedLessons struct {
	lessons   []domain.Lesson
	expiresAt time.Time
}

func NewLessonCatalog(loader LessonLoader, ttl time.Duration) *LessonCatalog {
	return &LessonCatalog{
		loader:      loader,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedLessons),
		generations: make(map[string]uint64),
	}
}

func (c *LessonCatalog) Lessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	if lessons, ok := c.lookup(cohortID); ok {
		return lessons, nil
	}

	result, err, _ := c.sf.Do(cohortID, func() (interface{}, error) {
		if lessons, ok := c.lookup(cohortID); ok {
			return lessons, nil
		}

		c.mu.Lock()
		gen := c.generations[cohortID]
		c.mu.Unlock()

		lessons, err := c.loader.LoadLessons(ctx, cohortID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// an Invalidate during the load means this result may be stale; serve it once, don't keep it
		if c.generations[cohortID] == gen {
			c.cache[cohortID] = cachedLessons{
				lessons:   lessons,
				expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
			}
		}
		c.mu.Unlock()
		return lessons, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLessons(result.([]domain.Lesson)), nil
}

// Invalidate drops the cached lessons of a cohort.
func (c *LessonCatalog) Invalidate(_ context.Context, cohortID string) error {
	c.mu.Lock()
	delete(c.cache, cohortID)
	c.generations[cohortID]++
	c.mu.Unlock()
	c.sf.Forget(cohortID)
	return nil
}

func (c *LessonCatalog) lookup(cohortID string) ([]domain.Lesson, bool) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.cache[cohortID]; ok && entry.expiresAt.After(now) {
		return cloneLessons(entry.lessons), true
	}
	return nil, false
}

func (c *LessonCatalog) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneLessons(in []domain.Lesson) []domain.Lesson {
	out := make([]domain.Lesson, len(in))
	for i, l := range in {
		out[i] = cloneLesson(l)
	}
	return out
}
