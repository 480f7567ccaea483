package workflow

import "sync"

// caseLocker serializes work per case while letting different cases run in parallel
type caseLocker struct {
	mu    sync.Mutex
	locks map[int64]*caseLock
}

type caseLock struct {
	sync.Mutex
	refs int
}

func newCaseLocker() *caseLocker {
	return &caseLocker{locks: make(map[int64]*caseLock)}
}

// Lock blocks until the case is free and returns the matching unlock func
func (l *caseLocker) Lock(caseID int64) func() {
	l.mu.Lock()
	lk, ok := l.locks[caseID]
	if !ok {
		lk = &caseLock{}
		l.locks[caseID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()

	return func() {
		lk.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, caseID)
		}
		l.mu.Unlock()
	}
}

func (l *caseLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
