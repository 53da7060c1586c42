package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the relay pool and the dispatch loop
var (
	// Connection metrics
	RelaysOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nostr_client_relays_open",
		Help: "The number of relay connections currently open",
	})

	RelayDialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_relay_dial_failures_total",
		Help: "The total number of failed relay dials",
	})

	TransportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_transport_errors_total",
		Help: "The total number of socket level failures",
	})

	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_protocol_errors_total",
		Help: "The total number of discarded malformed relay frames",
	})

	// Frame metrics
	RelayFramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_client_frames_sent_total",
		Help: "The total number of frames written to relays by label",
	}, []string{"type"}) // "EVENT", "REQ", "CLOSE"

	RelayFramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_client_frames_received_total",
		Help: "The total number of frames read from relays by label",
	}, []string{"type"})

	SendQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_send_queue_drops_total",
		Help: "The total number of outbound frames dropped on a full send queue",
	})

	// Event metrics
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_client_events_delivered_total",
		Help: "The total number of unique events handed to the processor by kind",
	}, []string{"kind"})

	DuplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_duplicate_events_total",
		Help: "The total number of duplicate events dropped",
	})

	InvalidEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_invalid_events_total",
		Help: "The total number of events dropped for a bad id or signature",
	})

	// Subscription metrics
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nostr_client_active_subscriptions",
		Help: "The number of live subscriptions",
	})

	EOSEAutoCloses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_eose_auto_closes_total",
		Help: "The total number of subscriptions closed on end of stored events",
	})

	// Publish metrics
	PublishAcks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_client_publish_acks_total",
		Help: "The total number of OK answers by result",
	}, []string{"result"}) // "accepted", "rejected"

	// Storage metrics
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_client_storage_operations_total",
		Help: "Total number of storage operations by outcome",
	}, []string{"operation"})

	StorageQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_client_storage_queue_drops_total",
		Help: "The total number of events not persisted because the queue was full",
	})
)

// Local counters, readable without scraping
var (
	deliveredCount  int64
	duplicateCount  int64
	lastDeliveredAt int64
	deliveredWindow = NewSlidingWindow(60*time.Second, 10000)
)

// IncrementDelivered counts one unique event of kind.
func IncrementDelivered(kind string) {
	EventsDelivered.WithLabelValues(kind).Inc()
	atomic.AddInt64(&deliveredCount, 1)
	atomic.StoreInt64(&lastDeliveredAt, time.Now().Unix())
	deliveredWindow.Add()
}

// IncrementDuplicates counts one dropped duplicate.
func IncrementDuplicates() {
	DuplicateEvents.Inc()
	atomic.AddInt64(&duplicateCount, 1)
}

// Snapshot is a point-in-time view of the local counters.
type Snapshot struct {
	Delivered       int64   `json:"delivered"`
	Duplicates      int64   `json:"duplicates"`
	EventsPerSecond float64 `json:"events_per_second"`
	LastDeliveredAt int64   `json:"last_delivered_at,omitempty"`
}

func GetSnapshot() Snapshot {
	return Snapshot{
		Delivered:       atomic.LoadInt64(&deliveredCount),
		Duplicates:      atomic.LoadInt64(&duplicateCount),
		EventsPerSecond: deliveredWindow.Rate(),
		LastDeliveredAt: atomic.LoadInt64(&lastDeliveredAt),
	}
}

// RegisterMetrics pre-registers known label values so they export as zero
func RegisterMetrics() {
	for _, label := range []string{"EVENT", "REQ", "CLOSE"} {
		RelayFramesSent.WithLabelValues(label)
	}
	for _, label := range []string{"EVENT", "EOSE", "OK", "NOTICE", "CLOSED"} {
		RelayFramesReceived.WithLabelValues(label)
	}
	for _, kind := range []string{"metadata", "text_note", "contact_list", "reaction"} {
		EventsDelivered.WithLabelValues(kind)
	}
	for _, result := range []string{"accepted", "rejected"} {
		PublishAcks.WithLabelValues(result)
	}
	for _, op := range []string{"persisted", "failed", "ignored"} {
		StorageOperations.WithLabelValues(op)
	}
}
