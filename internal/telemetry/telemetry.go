package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wetalk_channel_events_received_total",
		Help: "Inbound channel events by event name.",
	}, []string{"event"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wetalk_messages_sent_total",
		Help: "Outbound send_message events emitted.",
	})

	DirectoryRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wetalk_directory_refreshes_total",
		Help: "Completed directory refreshes.",
	})

	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wetalk_stale_responses_dropped_total",
		Help: "Fetch results discarded because the selection or refresh generation moved on.",
	})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wetalk_channel_reconnects_total",
		Help: "Successful channel reconnections.",
	})
)
