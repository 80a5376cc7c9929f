package workflow

import "sync"

// keyedLock hands out non-blocking per-key locks
type keyedLock struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[int64]struct{})}
}

// TryLock acquires key if free and returns its release func
func (l *keyedLock) TryLock(key int64) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}
