package service

import (
	"sync"
	"sync/atomic"
)

// cartLocks serializes mutations of one cart.
type cartLocks struct {
	mu    sync.Mutex
	locks map[string]*cartLock
}

type cartLock struct {
	mu   sync.Mutex
	refs int
}

func newCartLocks() *cartLocks {
	return &cartLocks{locks: make(map[string]*cartLock)}
}

func (l *cartLocks) lock(cartID string) (unlock func()) {
	l.mu.Lock()
	cl, ok := l.locks[cartID]
	if !ok {
		cl = new(cartLock)
		l.locks[cartID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, cartID)
		}
		l.mu.Unlock()
	}
}

// requestTokens issues increasing tokens per mutable field. Only the
// request holding the latest token of a field may commit.
type requestTokens struct {
	seq    atomic.Uint64
	mu     sync.Mutex
	latest map[string]uint64
}

func newRequestTokens() *requestTokens {
	return &requestTokens{latest: make(map[string]uint64)}
}

func (t *requestTokens) issue(field string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	token := t.seq.Add(1)
	t.latest[field] = token
	return token
}

func (t *requestTokens) isLatest(field string, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.latest[field] == token
}

// release forgets the field once its latest request is done.
func (t *requestTokens) release(field string, token uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.latest[field] == token {
		delete(t.latest, field)
	}
}
