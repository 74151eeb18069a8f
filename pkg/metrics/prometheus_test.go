package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordBarsFetched("alpaca", 120)
	r.RecordBarsFetched("alpaca", 30)
	r.RecordTickerSkipped("empty_fetch")
	r.RecordWindows("transformer", 34)
	r.RecordWindows("transformer", 10)
	r.RecordDuplicates(0)
	r.RecordDuplicates(2)
	r.RecordTrainingLoss("attention", 0.25)
	r.RecordCacheResult(true)
	r.RecordCacheResult(false)
	r.RecordCacheResult(false)
	r.RecordError("fetch")

	assert.Equal(t, 150.0, testutil.ToFloat64(r.barsFetched.WithLabelValues("alpaca")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tickersSkipped.WithLabelValues("empty_fetch")))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.windows.WithLabelValues("transformer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.trainingLoss.WithLabelValues("attention")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
