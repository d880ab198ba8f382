/* Copyright (c) 2021 vesoft inc. All rights reserved.
 *
 * This source code is licensed under Apache 2.0 License,
 * attached with Common Clause Condition 1.0, found in the LICENSES directory.
 */
package ltest

import (
	"math/rand"
	"os"
	"sync"
	"sync/atomic"

	"github.com/anishathalye/porcupine"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
)

// Client is one goroutine issuing operations against the shared counter.
type Client struct {
	ID  int
	rnd *rand.Rand
}

// Report is the outcome of a linearizability run.
type Report struct {
	Result     porcupine.CheckResult
	Operations int
	// HTMLPath is set when the visualisation was written.
	HTMLPath string
}

// logical clock for call and return stamps, shared by all clients
type clock struct {
	now atomic.Int64
}

func (c *clock) tick() int64 {
	return c.now.Add(1)
}

// collectHistory has clientNum clients each issue iterCount random get/inc
// operations on l and returns every operation with its call/return stamps.
func collectHistory(l *spinlock.SpinLock[int64], clientNum int, iterCount int, seed int64) []porcupine.Operation {
	var clk clock
	clients := make([]Client, clientNum)
	for i := range clients {
		clients[i] = Client{ID: i, rnd: rand.New(rand.NewSource(seed + int64(i)))}
	}

	clientOperations := make([][]porcupine.Operation, len(clients))
	var wg sync.WaitGroup
	wg.Add(len(clients))
	for i := range clients {
		go func(c *Client) {
			defer wg.Done()
			for o := 0; o < iterCount; o++ {
				op := opInc
				if c.rnd.Intn(3) == 0 {
					op = opGet
				}

				oprt := porcupine.Operation{
					ClientId: c.ID,
					Input:    counterInput{OP: op},
					Call:     clk.tick(),
				}
				val := spinlock.WithLock(l, func(v *int64) int64 {
					if op == opInc {
						*v++
					}
					return *v
				})
				oprt.Return = clk.tick()
				oprt.Output = counterOutput{Value: val}
				clientOperations[c.ID] = append(clientOperations[c.ID], oprt)
			}
		}(&clients[i])
	}
	wg.Wait()

	allOperations := []porcupine.Operation{}
	for i := range clientOperations {
		allOperations = append(allOperations, clientOperations[i]...)
	}
	return allOperations
}

// RunLinearizabilityTestAndCheck records a concurrent history against a
// SpinLock guarded counter and checks it with porcupine. With html set the
// visualisation is written to a temporary file.
func RunLinearizabilityTestAndCheck(clientNum int, iterCount int, seed int64, html bool) (*Report, error) {
	if clientNum <= 0 {
		return nil, errors.Errorf("clientNum should be greater than 0, got %d", clientNum)
	}
	if iterCount < 0 {
		return nil, errors.Errorf("iterCount must not be negative, got %d", iterCount)
	}

	log.WithFields(log.Fields{"clients": clientNum, "iter": iterCount}).Info("recording history")
	history := collectHistory(spinlock.New(int64(0)), clientNum, iterCount, seed)

	log.WithField("operations", len(history)).Info("performing check")
	res, info := porcupine.CheckOperationsVerbose(counterModel, history, 0)
	report := &Report{Result: res, Operations: len(history)}
	if !html {
		return report, nil
	}

	file, err := os.CreateTemp("", "ltest-*.html")
	if err != nil {
		return report, errors.Wrap(err, "creating visualization file")
	}
	defer file.Close()
	if err := porcupine.Visualize(counterModel, info, file); err != nil {
		return report, errors.Wrap(err, "visualizing history")
	}
	report.HTMLPath = file.Name()
	return report, nil
}
