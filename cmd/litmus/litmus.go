/*
Copyright © 2021 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package litmus runs the load buffering litmus test:
//
//	t1: r1 = y; x = r1
//	t2: r2 = x; y = 42
//
// With sequentially consistent atomics the outcome r1 == r2 == 42 is
// impossible. With plain memory accesses nothing rules it out, although
// common hardware never produces it, so seeing zero of them in relaxed mode
// says nothing about safety.
package litmus

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Mode selects how the two shared variables are accessed.
type Mode string

const (
	Ordered Mode = "ordered"
	Relaxed Mode = "relaxed"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Ordered, Relaxed:
		return m, nil
	}
	return "", errors.Errorf("unknown litmus mode %q, want %q or %q", s, Ordered, Relaxed)
}

// Outcome is the pair of values the two goroutines read.
type Outcome struct {
	R1, R2 int64
}

func (o Outcome) String() string {
	return fmt.Sprintf("r1=%d r2=%d", o.R1, o.R2)
}

// Forbidden is the outcome sequential consistency rules out.
var Forbidden = Outcome{42, 42}

// Histogram counts how often each outcome was seen.
type Histogram map[Outcome]int

// Outcomes returns the seen outcomes in a stable order.
func (h Histogram) Outcomes() []Outcome {
	ret := make([]Outcome, 0, len(h))
	for o := range h {
		ret = append(ret, o)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].R1 != ret[j].R1 {
			return ret[i].R1 < ret[j].R1
		}
		return ret[i].R2 < ret[j].R2
	})
	return ret
}

func runOrdered() Outcome {
	var x, y atomic.Int64
	var out Outcome
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.R1 = y.Load()
		x.Store(out.R1)
	}()
	go func() {
		defer wg.Done()
		out.R2 = x.Load()
		y.Store(42)
	}()
	wg.Wait()
	return out
}

func runRelaxed() Outcome {
	var x, y int64
	var out Outcome
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.R1 = y
		x = out.R1
	}()
	go func() {
		defer wg.Done()
		out.R2 = x
		y = 42
	}()
	wg.Wait()
	return out
}

// Run performs the litmus test runs times in mode.
func Run(mode Mode, runs int) (Histogram, error) {
	if runs < 0 {
		return nil, errors.Errorf("runs must not be negative, got %d", runs)
	}

	var once func() Outcome
	switch mode {
	case Ordered:
		once = runOrdered
	case Relaxed:
		once = runRelaxed
	default:
		return nil, errors.Errorf("unknown litmus mode %q", mode)
	}

	h := Histogram{}
	for i := 0; i < runs; i++ {
		h[once()]++
	}
	return h, nil
}
