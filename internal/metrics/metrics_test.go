package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := counterValue(t, httpRequests.WithLabelValues("calendar_day"))
	IncHTTP("calendar_day")
	IncHTTP("calendar_day")
	assert.Equal(t, before+2, counterValue(t, httpRequests.WithLabelValues("calendar_day")))

	before = counterValue(t, slotRejections.WithLabelValues("conflict"))
	IncSlotRejected("conflict")
	assert.Equal(t, before+1, counterValue(t, slotRejections.WithLabelValues("conflict")))

	before = counterValue(t, cacheLookups.WithLabelValues("hit"))
	IncCache("hit")
	assert.Equal(t, before+1, counterValue(t, cacheLookups.WithLabelValues("hit")))
}
