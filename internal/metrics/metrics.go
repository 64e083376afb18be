package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowpbx/remotecc/internal/database/models"
	"github.com/prometheus/client_golang/prometheus"
)

// EventCounter returns the number of logged call events for a source.
type EventCounter interface {
	Count(ctx context.Context, source string) (int64, error)
}

// HubStats exposes realtime push fan-out statistics.
type HubStats interface {
	SubscriberCount() int
	Published() uint64
	Dropped() uint64
}

// Collector is a prometheus.Collector that gathers remotecc metrics at scrape time.
type Collector struct {
	events    EventCounter
	hub       HubStats
	startTime time.Time

	// Metric descriptors.
	eventsStoredDesc  *prometheus.Desc
	subscribersDesc   *prometheus.Desc
	pushPublishedDesc *prometheus.Desc
	pushDroppedDesc   *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(events EventCounter, hub HubStats, startTime time.Time) *Collector {
	return &Collector{
		events:    events,
		hub:       hub,
		startTime: startTime,

		eventsStoredDesc: prometheus.NewDesc(
			"remotecc_call_events_stored",
			"Number of call events in the event log",
			[]string{"source"}, nil,
		),
		subscribersDesc: prometheus.NewDesc(
			"remotecc_push_subscribers",
			"Number of connected realtime dashboard observers",
			nil, nil,
		),
		pushPublishedDesc: prometheus.NewDesc(
			"remotecc_push_published_total",
			"Total call events published to realtime observers",
			nil, nil,
		),
		pushDroppedDesc: prometheus.NewDesc(
			"remotecc_push_dropped_total",
			"Total per-observer deliveries dropped because the observer queue was full",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"remotecc_uptime_seconds",
			"Seconds since the remotecc process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.eventsStoredDesc
	ch <- c.subscribersDesc
	ch <- c.pushPublishedDesc
	ch <- c.pushDroppedDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.events != nil {
		for _, source := range []string{models.SourceRemoteCC, models.SourceNotify} {
			count, err := c.events.Count(ctx, source)
			if err != nil {
				slog.Error("metrics: failed to count call events", "source", source, "error", err)
				continue
			}
			ch <- prometheus.MustNewConstMetric(
				c.eventsStoredDesc, prometheus.GaugeValue,
				float64(count), source,
			)
		}
	}

	if c.hub != nil {
		ch <- prometheus.MustNewConstMetric(
			c.subscribersDesc, prometheus.GaugeValue,
			float64(c.hub.SubscriberCount()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.pushPublishedDesc, prometheus.CounterValue,
			float64(c.hub.Published()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.pushDroppedDesc, prometheus.CounterValue,
			float64(c.hub.Dropped()),
		)
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}

// Webhook records per-request webhook outcomes as they happen.
type Webhook struct {
	requests        *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// NewWebhook creates the webhook instruments. Register them with Register.
func NewWebhook() *Webhook {
	return &Webhook{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecc_webhook_requests_total",
			Help: "Inbound webhook calls by source and routing outcome",
		}, []string{"source", "outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecc_webhook_persist_failures_total",
			Help: "Webhook calls whose event could not be written to the log",
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remotecc_webhook_duration_seconds",
			Help:    "Time from webhook receipt to routing response",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"source"}),
	}
}

// Register adds the webhook instruments to reg.
func (w *Webhook) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{w.requests, w.persistFailures, w.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records one handled webhook call.
func (w *Webhook) ObserveRequest(source string, matched bool, elapsed time.Duration) {
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	w.requests.WithLabelValues(source, outcome).Inc()
	w.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObservePersistFailure records a failed event log write.
func (w *Webhook) ObservePersistFailure(source string) {
	w.persistFailures.WithLabelValues(source).Inc()
}
