// Package metrics defines the Prometheus instrumentation for the relay.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// MessagesSeen counts guild messages observed on the gateway.
	MessagesSeen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_seen_total",
			Help: "Number of Discord guild messages observed.",
		},
	)

	// MentionsMatched counts registry matches by kind (handle, role, everyone).
	MentionsMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_mentions_matched_total",
			Help: "Number of mention matches against the subscriber registry.",
		},
		[]string{"kind"},
	)

	// NotificationsSent counts Telegram notifications delivered.
	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_notifications_sent_total",
			Help: "Number of Telegram notifications sent.",
		},
	)

	// NotificationsFailed counts Telegram send failures.
	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_notifications_failed_total",
			Help: "Number of Telegram notifications that failed to send.",
		},
	)

	// NotificationsDeduplicated counts matches suppressed by the dedup store.
	NotificationsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_notifications_deduplicated_total",
			Help: "Number of matches suppressed because the message was already relayed.",
		},
	)

	// Subscribers tracks onboarded subscriber chats.
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_subscribers",
			Help: "Number of chats with a registered handle or role subscription.",
		},
	)
)

// MustRegister registers all collectors with Prometheus exactly once.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			MessagesSeen,
			MentionsMatched,
			NotificationsSent,
			NotificationsFailed,
			NotificationsDeduplicated,
			Subscribers,
		)
	})
}
