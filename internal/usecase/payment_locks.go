package usecase

import (
	"sync"

	"github.com/google/uuid"
)

// paymentLocks serializes engine operations per payment id. The lock is
// taken before the provider call is issued, so two concurrent callers on
// the same payment cannot both reach the provider: the loser re-reads the
// row, sees the advanced status and fails the precondition check instead.
type paymentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*paymentLock
}

type paymentLock struct {
	mu   sync.Mutex
	refs int
}

func newPaymentLocks() *paymentLocks {
	return &paymentLocks{locks: make(map[uuid.UUID]*paymentLock)}
}

// Lock acquires the lock for id and returns the matching unlock func.
func (l *paymentLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &paymentLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
