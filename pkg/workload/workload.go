// Package workload drives locks from many goroutines and checks what comes
// out the other side.
package workload

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// Locker is the access method shared by spinlock.SpinLock and
// spinlock.Relaxed.
type Locker[T any] interface {
	Do(f func(v *T))
}

// Config sizes a counter run.
type Config struct {
	Workers    int
	Iterations int
}

// Validate rejects negative sizes. Zero workers or iterations is a valid,
// empty run.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Iterations < 0 {
		return errors.Errorf("iterations must not be negative, got %d", c.Iterations)
	}
	return nil
}

// Expected is the counter value a correct lock ends with.
func (c Config) Expected() int64 {
	return int64(c.Workers) * int64(c.Iterations)
}

// Result of a single counter run.
type Result[N constraints.Integer] struct {
	Final    N
	Expected N
	// MaxInside is the largest number of goroutines seen inside the
	// critical section at once. Anything above 1 is a mutual exclusion
	// failure.
	MaxInside int32
}

// Lost returns how many increments went missing.
func (r Result[N]) Lost() N {
	return r.Expected - r.Final
}

// OK reports whether the run kept every increment and never overlapped.
func (r Result[N]) OK() bool {
	return r.Final == r.Expected && r.MaxInside <= 1
}

type overlap struct {
	inside, max atomic.Int32
}

func (o *overlap) enter() {
	n := o.inside.Add(1)
	for {
		m := o.max.Load()
		if n <= m || o.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (o *overlap) leave() {
	o.inside.Add(-1)
}

// Counter has cfg.Workers goroutines increment the value behind l
// cfg.Iterations times each, joins them and reads the final value through
// the lock. The value behind l should start at zero.
func Counter[N constraints.Integer](ctx context.Context, l Locker[N], cfg Config) (Result[N], error) {
	if err := cfg.Validate(); err != nil {
		return Result[N]{}, err
	}

	var ov overlap
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for j := 0; j < cfg.Iterations; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				l.Do(func(v *N) {
					ov.enter()
					*v++
					ov.leave()
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result[N]{}, errors.Wrap(err, "counter workers")
	}

	var final N
	l.Do(func(v *N) { final = *v })
	return Result[N]{
		Final:     final,
		Expected:  N(cfg.Expected()),
		MaxInside: ov.max.Load(),
	}, nil
}

// Summary aggregates repeated counter runs.
type Summary struct {
	Trials    int
	Failed    int
	LostTotal int64
	MaxInside int32
}

// OK reports whether no trial failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Trials runs Counter trials times, each on a fresh lock from newLocker.
// It stops early when ctx is done.
func Trials(ctx context.Context, cfg Config, trials int, newLocker func() Locker[int64]) (Summary, error) {
	if trials < 0 {
		return Summary{}, errors.Errorf("trials must not be negative, got %d", trials)
	}

	var s Summary
	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return s, errors.Wrapf(err, "stopped after %d trials", s.Trials)
		}
		res, err := Counter(ctx, newLocker(), cfg)
		if err != nil {
			return s, errors.Wrapf(err, "trial %d", i)
		}
		s.Trials++
		if res.MaxInside > s.MaxInside {
			s.MaxInside = res.MaxInside
		}
		if !res.OK() {
			s.Failed++
			s.LostTotal += int64(res.Lost())
			log.WithFields(log.Fields{
				"trial":     i,
				"final":     res.Final,
				"expected":  res.Expected,
				"maxInside": res.MaxInside,
			}).Debug("trial failed")
		}
	}
	return s, nil
}
