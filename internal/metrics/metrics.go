// Package metrics holds the Prometheus collectors of the service.
// Collectors are registered on the registerer handed to New, never on the global one.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
)

const namespace = "machinestream"

const (
    ResultSuccess = "success"
    ResultFailure = "failure"
)

type Metrics struct {
    // Ingestion
    MessagesReceived prometheus.Counter
    MessagesDropped  prometheus.Counter
    ConnectionOpens  prometheus.Counter
    ConnectionErrors prometheus.Counter

    // Store
    EventsInserted *prometheus.CounterVec
    FindDuration   prometheus.Histogram
    FindErrors     prometheus.Counter
}

func New(registerer prometheus.Registerer) *Metrics {
    m := &Metrics{
        MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "ingest",
            Name:      "messages_received_total",
            Help:      "Total number of messages received from the websocket feed",
        }),
        MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "ingest",
            Name:      "messages_dropped_total",
            Help:      "Total number of messages dropped because they could not be processed",
        }),
        ConnectionOpens: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "ingest",
            Name:      "connection_opens_total",
            Help:      "Total number of times the websocket connection was opened",
        }),
        ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "ingest",
            Name:      "connection_errors_total",
            Help:      "Total number of websocket connection errors",
        }),
        EventsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "store",
            Name:      "events_inserted_total",
            Help:      "Total number of event insert attempts by result",
        }, []string{"result"}),
        FindDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
            Namespace: namespace,
            Subsystem: "store",
            Name:      "find_duration_seconds",
            Help:      "Duration of event find operations in seconds",
            Buckets:   prometheus.DefBuckets,
        }),
        FindErrors: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "store",
            Name:      "find_errors_total",
            Help:      "Total number of failed event find operations",
        }),
    }
    registerer.MustRegister(
        m.MessagesReceived,
        m.MessagesDropped,
        m.ConnectionOpens,
        m.ConnectionErrors,
        m.EventsInserted,
        m.FindDuration,
        m.FindErrors,
    )
    return m
}

// NewNop returns collectors that are not registered anywhere.
func NewNop() *Metrics {
    return New(prometheus.NewRegistry())
}
