package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestMonitor_TrackNotification(t *testing.T) {
	m := NewMonitor()

	m.TrackNotification("test-transport", nil)
	m.TrackNotification("test-transport", errors.New("line down"))
	m.TrackNotification("test-transport", errors.New("line down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(notifications.WithLabelValues("test-transport", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(notifications.WithLabelValues("test-transport", "error")))
}

func TestMonitor_TrackCall(t *testing.T) {
	m := NewMonitor()

	m.TrackCall("call_next", "act-metrics", "success")
	m.TrackCall("call_next", "act-metrics", "noop")

	assert.Equal(t, 1.0, testutil.ToFloat64(callOperations.WithLabelValues("call_next", "act-metrics", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(callOperations.WithLabelValues("call_next", "act-metrics", "noop")))
}

func TestMonitor_SeatAssignment(t *testing.T) {
	m := NewMonitor()

	m.TrackSeatAssignment("act-seats", 3, 20*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(seatsUnassigned.WithLabelValues("act-seats")))
}
