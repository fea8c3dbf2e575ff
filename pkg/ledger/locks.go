package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// loanLocks hands out one mutex per loan. Entries are reference counted and
// dropped when the last holder unlocks, so the map only holds loans that are
// currently in use.
type loanLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*loanLock
}

type loanLock struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: make(map[uuid.UUID]*loanLock)}
}

// lock blocks until the caller holds the loan's mutex and returns the unlock func.
func (l *loanLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	ll, ok := l.locks[id]
	if !ok {
		ll = &loanLock{}
		l.locks[id] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.mu.Lock()
	return func() {
		ll.mu.Unlock()

		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *loanLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
