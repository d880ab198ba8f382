package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
)

func TestObserverCounts(t *testing.T) {
	m := New("test")
	obs := m.Observer("spin")
	obs.Acquired(false)
	obs.Acquired(false)
	obs.Acquired(true)
	obs.Yielded()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues("spin", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues("spin", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Yields.WithLabelValues("spin")))
	assert.Zero(t, testutil.ToFloat64(m.Yields.WithLabelValues("relaxed")))
}

func TestObserverWiredToLock(t *testing.T) {
	m := New("test")
	l := spinlock.New(0, spinlock.WithObserver(m.Observer("spin")))
	for i := 0; i < 3; i++ {
		l.Do(func(v *int) { *v++ })
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues("spin", "false")))
}

func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test")
	for _, c := range m.Collectors() {
		require.NoError(t, reg.Register(c))
	}
	m.Observer("spin").Acquired(false)

	n, err := testutil.GatherAndCount(reg, "test_spinlock_acquisitions_total")
	require.NoError(t, err)
	// Observer creates both contended series up front.
	assert.Equal(t, 2, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.Nil(t, m.Collectors())
	assert.Nil(t, m.Observer("spin"))
}
