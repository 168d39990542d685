package memory

import (
	"context"
	"sync"
)

// Locker is an in-process, per-key implementation of app.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]chan struct{})}
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			released = make(chan struct{})
			l.held[key] = released
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					close(released)
					l.mu.Unlock()
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Held reports whether key is currently locked.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
