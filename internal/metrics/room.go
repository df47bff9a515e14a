package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_room_operations_total",
			Help: "Room state machine operations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	roomOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinflip_room_operation_duration_ms",
			Help:    "Room operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	payoutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinflip_payout_lamports_total",
			Help: "Sum of lamports paid out to winners",
		},
	)

	winnerSeat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_winner_seat_total",
			Help: "Resolved rooms by winning seat; a skew here points at a biased oracle",
		},
		[]string{"seat"},
	)

	resolverRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_resolver_attempts_total",
			Help: "Background resolve attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordRoomOp records one state machine call.
// outcome: "success" | "pending" | "rejected" | "error"
func RecordRoomOp(op, outcome string, started time.Time) {
	roomOpsTotal.WithLabelValues(op, outcome).Inc()
	roomOpDuration.WithLabelValues(op, outcome).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordPayout records a settled room.
func RecordPayout(amount uint64, seat string) {
	payoutTotal.Add(float64(amount))
	winnerSeat.WithLabelValues(seat).Inc()
}

// RecordResolverAttempt records one worker attempt.
func RecordResolverAttempt(outcome string) {
	resolverRuns.WithLabelValues(outcome).Inc()
}
