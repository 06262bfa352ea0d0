package state

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Store = (*Instrumented)(nil)

const tracerName = "github.com/goliatone/go-intake/pkg/state"

// Metrics holds the store collectors.
type Metrics struct {
	Duration *prometheus.HistogramVec
	Errors   *prometheus.CounterVec
}

// NewMetrics registers store collectors on reg. A nil reg uses the default
// prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_store_operation_duration_seconds",
			Help:    "Duration of record store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend", "op"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_store_errors_total",
			Help: "Total number of failed record store operations",
		}, []string{"backend", "op"}),
	}
}

// Instrumented decorates a Store with metrics and tracing spans.
type Instrumented struct {
	next    Store
	backend string
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument wraps next. metrics may be nil to only trace.
func Instrument(next Store, backend string, metrics *Metrics) *Instrumented {
	return &Instrumented{
		next:    next,
		backend: backend,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Unwrap returns the decorated store.
func (s *Instrumented) Unwrap() Store { return s.next }

func (s *Instrumented) Key() string { return KeyOf(s.next) }

func (s *Instrumented) Replace(ctx context.Context, record Record) error {
	ctx, done := s.start(ctx, "replace", "")
	err := s.next.Replace(ctx, record)
	done(err)
	return err
}

func (s *Instrumented) Read(ctx context.Context) (Record, bool, error) {
	ctx, done := s.start(ctx, "read", "")
	record, ok, err := s.next.Read(ctx)
	done(err)
	return record, ok, err
}

func (s *Instrumented) Delete(ctx context.Context) error {
	ctx, done := s.start(ctx, "delete", "")
	err := s.next.Delete(ctx)
	done(err)
	return err
}

func (s *Instrumented) UpdateSubsection(ctx context.Context, name string, data any) error {
	ctx, done := s.start(ctx, "update", name)
	err := s.next.UpdateSubsection(ctx, name, data)
	done(err)
	return err
}

func (s *Instrumented) start(ctx context.Context, op, subsection string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("intake.store.backend", s.backend),
		attribute.String("intake.store.op", op),
	}
	if subsection != "" {
		attrs = append(attrs, attribute.String("intake.store.subsection", subsection))
	}
	ctx, span := s.tracer.Start(ctx, "state."+op, trace.WithAttributes(attrs...))
	started := time.Now()
	return ctx, func(err error) {
		if s.metrics != nil {
			s.metrics.Duration.WithLabelValues(s.backend, op).Observe(time.Since(started).Seconds())
			if err != nil {
				s.metrics.Errors.WithLabelValues(s.backend, op).Inc()
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
