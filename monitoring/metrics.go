package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	allocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_allocations_total",
			Help: "Queue number allocations by outcome",
		},
		[]string{"activity_id", "result"},
	)

	allocationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_allocation_attempts",
			Help:    "Transaction attempts needed per allocation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	allocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_allocation_duration_seconds",
			Help:    "Duration of queue number allocation including retries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	callOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_call_operations_total",
			Help: "Queue channel operations by outcome",
		},
		[]string{"operation", "activity_id", "result"},
	)

	waitingTickets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_waiting_tickets",
			Help: "Checked-in tickets not yet called, per course",
		},
		[]string{"activity_id", "course"},
	)

	seatAssignmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seat_assignment_duration_seconds",
			Help:    "Duration of batch seat assignment",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"activity_id"},
	)

	seatsUnassigned = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seat_unassigned_registrants",
			Help: "Registrants left without a seat by the last assignment run",
		},
		[]string{"activity_id"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification dispatch attempts by transport and outcome",
		},
		[]string{"transport", "result"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackAllocation(activityID, result string, attempts int, took time.Duration) {
	allocations.WithLabelValues(activityID, result).Inc()
	if attempts > 0 {
		allocationAttempts.Observe(float64(attempts))
	}
	allocationDuration.Observe(took.Seconds())
}

func (m *Monitor) TrackCall(operation, activityID, result string) {
	callOperations.WithLabelValues(operation, activityID, result).Inc()
}

func (m *Monitor) SetWaiting(activityID, course string, n int) {
	waitingTickets.WithLabelValues(activityID, course).Set(float64(n))
}

func (m *Monitor) TrackSeatAssignment(activityID string, unassigned int, took time.Duration) {
	seatAssignmentDuration.WithLabelValues(activityID).Observe(took.Seconds())
	seatsUnassigned.WithLabelValues(activityID).Set(float64(unassigned))
}

func (m *Monitor) TrackNotification(transport string, err error) {
	notifications.WithLabelValues(transport, Result(err)).Inc()
}

// Result turns an operation error into a metric label.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}
