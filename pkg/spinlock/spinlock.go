// Package spinlock provides a busy-waiting mutual exclusion lock that owns
// the value it protects.
//
// The lock never parks the calling goroutine. A contended caller spins on a
// plain load of the lock flag, yielding its time slice on every iteration,
// and only retries the compare-and-swap once the flag has been seen free.
//
// There is no fairness among waiters and no reentrancy: calling WithLock on
// a lock from inside its own critical section deadlocks. If the function
// passed to WithLock panics the lock is never released and every later
// caller spins forever.
package spinlock

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	unlocked = false
	locked   = true
)

// SpinLock guards a single value of type T.
//
// The value is only reachable through WithLock and Do. A SpinLock must not
// be copied after first use.
type SpinLock[T any] struct {
	state atomic.Bool
	_     cpu.CacheLinePad
	v     T
	obs   Observer
}

// New returns an unlocked SpinLock owning initial.
func New[T any](initial T, opts ...Option) *SpinLock[T] {
	o := loadOptions(opts...)
	return &SpinLock[T]{v: initial, obs: o.Observer}
}

// WithLock runs f with exclusive access to the value guarded by l and
// returns whatever f returns.
func WithLock[T, R any](l *SpinLock[T], f func(v *T) R) R {
	l.lock()
	ret := f(&l.v)
	l.unlock()
	return ret
}

// Do is WithLock for functions without a result.
func (l *SpinLock[T]) Do(f func(v *T)) {
	l.lock()
	f(&l.v)
	l.unlock()
}

func (l *SpinLock[T]) lock() {
	contended := false
	// sync/atomic operations are sequentially consistent, which covers the
	// acquire the successful CAS needs and the relaxed failed CAS and load.
	for !l.state.CompareAndSwap(unlocked, locked) {
		contended = true
		// Read-only spin keeps the line shared while the holder works.
		for l.state.Load() == locked {
			l.yield()
		}
		l.yield()
	}
	if l.obs != nil {
		l.obs.Acquired(contended)
	}
}

// unlock publishes every write made under the lock to the next acquirer.
func (l *SpinLock[T]) unlock() {
	l.state.Store(unlocked)
}

func (l *SpinLock[T]) yield() {
	if l.obs != nil {
		l.obs.Yielded()
	}
	runtime.Gosched()
}
