//go:build !race
// +build !race

package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelaxedReturnsResult(t *testing.T) {
	l := NewRelaxed(1)
	assert.Equal(t, 2, WithRelaxed(l, func(v *int) int {
		*v++
		return *v
	}))
	assert.Equal(t, struct{}{}, WithRelaxed(l, func(v *int) struct{} { return struct{}{} }))
}

// The relaxed release may lose increments. Not losing any is expected on
// most hardware and is not evidence of correctness, so this only reports.
func TestRelaxedMayLoseUpdates(t *testing.T) {
	trials := 200
	if testing.Short() {
		trials = 20
	}

	lostTrials := 0
	for trial := 0; trial < trials; trial++ {
		l := NewRelaxed(0)
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
		if WithRelaxed(l, func(v *int) int { return *v }) != 1000 {
			lostTrials++
		}
	}
	t.Logf("relaxed release lost updates in %d of %d trials", lostTrials, trials)
}
