// Package metricsvc exposes Prometheus metrics about attendance marking and parent notifications.
package metricsvc

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/shala/core/notify"
)

type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	absentees     prometheus.Counter
	recipients    *prometheus.CounterVec
	messagesSent  prometheus.Counter
	messagesError prometheus.Counter
	batchSeconds  prometheus.Histogram
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events published after attendance or notices were saved.",
		}, []string{"event"}),
		absentees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "absentees_total",
			Help:      "Students marked absent.",
		}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audience_recipients_total",
			Help:      "Students addressed by notices and study messages.",
		}, []string{"event"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Parent messages handed over to the sink.",
		}),
		messagesError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Parent messages in batches the sink failed to deliver.",
		}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_batch_duration_seconds",
			Help:      "Time spent delivering a batch of messages.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.absentees, m.recipients, m.messagesSent, m.messagesError, m.batchSeconds,
	)
	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventHandler counts the published events. Pass it to the event bus constructor.
func (m *Metrics) EventHandler() notify.HandlerFunc {
	return func(_ context.Context, ev notify.Event) error {
		m.events.WithLabelValues(ev.Name()).Inc()
		switch ev := ev.(type) {
		case notify.AttendanceMarked:
			m.absentees.Add(float64(len(ev.Absentees)))
		case notify.NoticeCreated:
			m.recipients.WithLabelValues(ev.Name()).Add(float64(len(ev.Recipients)))
		case notify.StudyMessageCreated:
			m.recipients.WithLabelValues(ev.Name()).Add(float64(len(ev.Recipients)))
		}
		return nil
	}
}

type instrumentedSink struct {
	sink    notify.Sink
	metrics *Metrics
}

// InstrumentSink wraps `sink` to count the messages it delivers.
func (m *Metrics) InstrumentSink(sink notify.Sink) notify.Sink {
	return &instrumentedSink{sink: sink, metrics: m}
}

func (s *instrumentedSink) SendBatch(ctx context.Context, msgs []notify.Message) error {
	timer := prometheus.NewTimer(s.metrics.batchSeconds)
	defer timer.ObserveDuration()

	err := s.sink.SendBatch(ctx, msgs)
	if err != nil {
		s.metrics.messagesError.Add(float64(len(msgs)))
	} else {
		s.metrics.messagesSent.Add(float64(len(msgs)))
	}
	return err
}
