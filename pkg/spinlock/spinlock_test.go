package spinlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hangTimeout = 100 * time.Millisecond

type countingObserver struct {
	acquired  atomic.Int64
	contended atomic.Int64
	yields    atomic.Int64
}

func (o *countingObserver) Acquired(contended bool) {
	o.acquired.Add(1)
	if contended {
		o.contended.Add(1)
	}
}

func (o *countingObserver) Yielded() { o.yields.Add(1) }

func TestWithLockReturnsResult(t *testing.T) {
	l := New(41)
	assert.Equal(t, 42, WithLock(l, func(v *int) int {
		*v++
		return *v
	}))
	assert.Equal(t, "42", WithLock(l, func(v *int) string { return "42" }))
	assert.Equal(t, struct{}{}, WithLock(l, func(v *int) struct{} { return struct{}{} }))

	type pair struct{ a, b int }
	assert.Equal(t, pair{42, 43}, WithLock(l, func(v *int) pair { return pair{*v, *v + 1} }))

	called := false
	l.Do(func(v *int) { called = *v == 42 })
	assert.True(t, called)
}

func TestIncrementTenByHundred(t *testing.T) {
	l := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Do(func(v *int) { *v++ })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, WithLock(l, func(v *int) int { return *v }))
}

func TestMutualExclusion(t *testing.T) {
	var inside, maxInside atomic.Int32
	l := New(struct{}{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				l.Do(func(*struct{}) {
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					inside.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

// Writes to several fields under the lock must be seen together by the next
// holder.
func TestReleasePublishesWrites(t *testing.T) {
	type payload struct{ a, b, c int }
	l := New(payload{})

	var torn atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				l.Do(func(p *payload) {
					if p.a != p.b || p.b != p.c {
						torn.Add(1)
					}
					p.a++
					p.b++
					p.c++
				})
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, torn.Load())
	assert.Equal(t, payload{4000, 4000, 4000}, WithLock(l, func(p *payload) payload { return *p }))
}

func TestIndependentInstances(t *testing.T) {
	a, b := New(0), New(0)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		a.Do(func(*int) {
			close(entered)
			<-release
		})
		close(done)
	}()
	<-entered

	// b must be usable while a is held.
	finished := make(chan int)
	go func() {
		finished <- WithLock(b, func(v *int) int {
			*v = 7
			return *v
		})
	}()
	select {
	case v := <-finished:
		assert.Equal(t, 7, v)
	case <-time.After(5 * time.Second):
		t.Fatal("holding one lock blocked another instance")
	}

	close(release)
	<-done
}

func TestReentrantCallDeadlocks(t *testing.T) {
	l := New(0)
	innerRan := make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.Do(func(v *int) {
			l.Do(func(v *int) { close(innerRan) })
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reentrant WithLock completed")
	case <-time.After(hangTimeout):
	}
	assert.Equal(t, locked, l.state.Load())

	// Free the outer hold so the inner call and the goroutine can finish.
	l.unlock()
	<-innerRan
	<-done
}

func TestPanicLeavesLockHeld(t *testing.T) {
	l := New(0)
	func() {
		defer func() {
			require.Equal(t, "boom", recover())
		}()
		l.Do(func(v *int) {
			*v = 1
			panic("boom")
		})
	}()
	assert.Equal(t, locked, l.state.Load())

	done := make(chan int)
	go func() {
		done <- WithLock(l, func(v *int) int { return *v })
	}()
	select {
	case <-done:
		t.Fatal("lock was released after a panic in the critical section")
	case <-time.After(hangTimeout):
	}

	l.unlock()
	assert.Equal(t, 1, <-done)
}

func TestObserver(t *testing.T) {
	obs := new(countingObserver)
	l := New(0, WithObserver(obs))

	l.Do(func(v *int) {})
	assert.Equal(t, int64(1), obs.acquired.Load())
	assert.Zero(t, obs.contended.Load())
	assert.Zero(t, obs.yields.Load())

	entered := make(chan struct{})
	release := make(chan struct{})
	go l.Do(func(*int) {
		close(entered)
		<-release
	})
	<-entered

	done := make(chan struct{})
	go func() {
		l.Do(func(v *int) {})
		close(done)
	}()
	require.Eventually(t, func() bool { return obs.yields.Load() > 0 }, 5*time.Second, time.Millisecond)
	close(release)
	<-done

	assert.Equal(t, int64(3), obs.acquired.Load())
	assert.Equal(t, int64(1), obs.contended.Load())
}

func TestWithOptions(t *testing.T) {
	obs := new(countingObserver)
	l := New("x", WithOptions(Options{Observer: obs}))
	assert.Equal(t, "x", WithLock(l, func(v *string) string { return *v }))
	assert.Equal(t, int64(1), obs.acquired.Load())
}

func BenchmarkSpinLock(b *testing.B) {
	l := New(0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Do(func(v *int) { *v++ })
		}
	})
}

func BenchmarkSpinLockUncontended(b *testing.B) {
	l := New(0)
	for i := 0; i < b.N; i++ {
		l.Do(func(v *int) { *v++ })
	}
}
