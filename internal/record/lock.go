package record

import "runtime"

// LockExclusive acquires the exclusive lock. It first claims the exclusive
// bit, which stops new shared holders, and then waits for the existing ones
// to drain. It spins without bound.
func (w Word) LockExclusive() {
	for {
		old := w.Load()
		if !old.ExclusiveLocked() && w.p.CompareAndSwap(uint64(old), uint64(old)|exclusiveBit) {
			break
		}
		runtime.Gosched()
	}
	for w.Load().SharedLockCount() > 0 {
		runtime.Gosched()
	}
}

// TryLockExclusive makes at most spin attempts in total. On failure no part
// of the acquisition is left behind.
func (w Word) TryLockExclusive(spin int) bool {
	if spin < 1 {
		spin = 1
	}
	for {
		old := w.Load()
		if !old.ExclusiveLocked() && w.p.CompareAndSwap(uint64(old), uint64(old)|exclusiveBit) {
			break
		}
		spin--
		if spin == 0 {
			return false
		}
		runtime.Gosched()
	}
	for w.Load().SharedLockCount() > 0 {
		spin--
		if spin <= 0 {
			w.p.And(^exclusiveBit)
			return false
		}
		runtime.Gosched()
	}
	return true
}

// UnlockExclusive releases a lock taken by LockExclusive or TryLockExclusive.
func (w Word) UnlockExclusive() {
	if debugEnabled {
		invariant(w.Load().ExclusiveLocked(), "UnlockExclusive on a word that is not exclusively locked")
	}
	w.p.And(^exclusiveBit)
}

// LockShared acquires a shared lock, spinning without bound while a writer
// holds or is acquiring the exclusive lock or the holder count is saturated.
func (w Word) LockShared() {
	for !w.tryShared() {
		runtime.Gosched()
	}
}

// TryLockShared makes at most spin attempts.
func (w Word) TryLockShared(spin int) bool {
	if spin < 1 {
		spin = 1
	}
	for range spin {
		if w.tryShared() {
			return true
		}
		runtime.Gosched()
	}
	return false
}

// UnlockShared releases one shared hold.
func (w Word) UnlockShared() {
	if debugEnabled {
		invariant(w.Load().SharedLockCount() > 0, "UnlockShared on a word without shared holders")
	}
	// Subtracting 1<<48 cannot borrow from the bits above while the count is positive.
	w.p.Add(^(sharedOne - 1))
}

func (w Word) tryShared() bool {
	old := w.Load()
	if old.ExclusiveLocked() || old.SharedLockCount() >= MaxSharedLocks {
		return false
	}
	return w.p.CompareAndSwap(uint64(old), uint64(old)+sharedOne)
}
