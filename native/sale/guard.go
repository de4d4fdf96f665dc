package sale

import "sync/atomic"

// callGuard is a single-permit reentrancy lock. Operations that call out to
// untrusted collaborators take the permit on entry and release it on every
// exit path; a collaborator that calls back into a guarded operation finds
// the permit taken and fails with ErrReentrancy instead of observing partial
// state. The permit is a CAS rather than a mutex so a same-goroutine
// re-entrant call fails fast instead of deadlocking.
type callGuard struct {
	entered atomic.Bool
}

func (g *callGuard) enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (g *callGuard) exit() {
	g.entered.Store(false)
}
