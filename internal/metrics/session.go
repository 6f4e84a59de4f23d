// Package metrics provides Prometheus metrics for frame sharing sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/framelink/internal/events"
)

const namespace = "framelink"

var (
	framesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "producer",
		Name:      "frames_published_total",
		Help:      "Frames handed to the consumer",
	}, []string{"session_id"})

	framesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "producer",
		Name:      "frames_skipped_total",
		Help:      "Frames dropped because they could not be exported",
	}, []string{"session_id", "reason"})

	framesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "frames_consumed_total",
		Help:      "Frames mapped and visited successfully",
	}, []string{"session_id"})

	bytesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "bytes_consumed_total",
		Help:      "Mapped bytes of successfully visited frames",
	}, []string{"session_id"})

	framesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "frames_failed_total",
		Help:      "Frames that could not be mapped or visited",
	}, []string{"session_id", "code"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "1 for the current state of a session, 0 otherwise",
	}, []string{"role", "session_id", "state"})

	configReloads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_reloads_total",
		Help:      "Config file reloads applied",
	})
)

// Attach feeds session events from bus into the Prometheus metrics.
// The returned function unsubscribes.
func Attach(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.SessionStateChangedEvent) {
			if e.From != "" {
				sessionState.WithLabelValues(e.Role, e.SessionID, e.From).Set(0)
			}
			sessionState.WithLabelValues(e.Role, e.SessionID, e.To).Set(1)
		}),
		bus.Subscribe(func(e events.FramePublishedEvent) {
			framesPublished.WithLabelValues(e.SessionID).Inc()
		}),
		bus.Subscribe(func(e events.FrameSkippedEvent) {
			framesSkipped.WithLabelValues(e.SessionID, e.Reason).Inc()
		}),
		bus.Subscribe(func(e events.FrameConsumedEvent) {
			framesConsumed.WithLabelValues(e.SessionID).Inc()
			bytesConsumed.WithLabelValues(e.SessionID).Add(float64(e.Bytes))
		}),
		bus.Subscribe(func(e events.FrameFailedEvent) {
			framesFailed.WithLabelValues(e.SessionID, e.Code).Inc()
		}),
		bus.Subscribe(func(events.ConfigReloadedEvent) {
			configReloads.Inc()
		}),
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// DeleteSession removes every series labelled with sessionID.
func DeleteSession(sessionID string) {
	labels := prometheus.Labels{"session_id": sessionID}
	framesPublished.DeletePartialMatch(labels)
	framesSkipped.DeletePartialMatch(labels)
	framesConsumed.DeletePartialMatch(labels)
	bytesConsumed.DeletePartialMatch(labels)
	framesFailed.DeletePartialMatch(labels)
	sessionState.DeletePartialMatch(labels)
}
