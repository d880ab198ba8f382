package spinlock

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Relaxed is a comparison fixture, not a lock to use.
//
// It acquires exactly like SpinLock but releases with a plain store to the
// flag. That store carries no ordering: the next acquirer is not guaranteed
// to see the writes made inside the previous critical section, or to see
// them in program order. Whether lost updates actually show up depends on
// the compiler and hardware, so a run that loses nothing proves nothing.
// The race detector reports every use of it.
type Relaxed[T any] struct {
	state uint32
	_     cpu.CacheLinePad
	v     T
	obs   Observer
}

// NewRelaxed returns an unlocked Relaxed owning initial.
func NewRelaxed[T any](initial T, opts ...Option) *Relaxed[T] {
	o := loadOptions(opts...)
	return &Relaxed[T]{v: initial, obs: o.Observer}
}

// WithRelaxed runs f under l and returns its result.
func WithRelaxed[T, R any](l *Relaxed[T], f func(v *T) R) R {
	l.lock()
	ret := f(&l.v)
	l.unlock()
	return ret
}

// Do is WithRelaxed for functions without a result.
func (l *Relaxed[T]) Do(f func(v *T)) {
	l.lock()
	f(&l.v)
	l.unlock()
}

func (l *Relaxed[T]) lock() {
	contended := false
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		contended = true
		for atomic.LoadUint32(&l.state) == 1 {
			l.yield()
		}
		l.yield()
	}
	if l.obs != nil {
		l.obs.Acquired(contended)
	}
}

func (l *Relaxed[T]) unlock() {
	l.state = 0
}

func (l *Relaxed[T]) yield() {
	if l.obs != nil {
		l.obs.Yielded()
	}
	runtime.Gosched()
}
