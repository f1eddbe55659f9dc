package vectorstore

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

const instrumentationName = "github.com/fyrsmithlabs/ragstore/internal/vectorstore"

// Operation results used as the "result" label.
const (
	resultSuccess      = "success"
	resultError        = "error"
	resultPartial      = "partial"
	resultDisconnected = "disconnected"
)

var (
	// OperationsTotal counts Store operations.
	// Labels: op (add, query, scroll, ensure_indexes), result (success, error, partial, disconnected)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations by outcome",
		},
		[]string{"op", "result"},
	)

	// OperationDuration tracks how long operations take, backend calls included.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// ScrolledRecords counts records returned by full scans.
	ScrolledRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "vectorstore",
			Name:      "scrolled_records_total",
			Help:      "Total number of records read by full-collection scans",
		},
	)

	// connectedGauge is 1 while the last Store built is connected.
	connectedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragstore",
			Subsystem: "vectorstore",
			Name:      "connected",
			Help:      "Whether the vector store holds a backend connection (1) or is degraded (0)",
		},
	)
)

func recordOperation(op, result string, d time.Duration) {
	OperationsTotal.WithLabelValues(op, result).Inc()
	if d > 0 {
		OperationDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// operation is the span and timer of one Store call.
type operation struct {
	name  string
	span  trace.Span
	start time.Time
}

func (s *Store) startOp(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "vectorstore."+name)
	span.SetAttributes(attribute.String("collection", s.collection))
	span.SetAttributes(attrs...)
	return ctx, &operation{name: name, span: span, start: time.Now()}
}

// fail records err on the span and counts the operation as result.
func (o *operation) fail(result string, err error) {
	o.span.RecordError(err)
	o.span.SetStatus(codes.Error, err.Error())
	o.finish(result)
}

func (o *operation) succeed(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
	o.span.SetStatus(codes.Ok, "success")
	o.finish(resultSuccess)
}

func (o *operation) finish(result string) {
	recordOperation(o.name, result, time.Since(o.start))
	o.span.End()
}
