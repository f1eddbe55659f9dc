package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_RecordGeneration(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetrics(mp.Meter(embeddingsInstrumentationName), nil)

	ctx := context.Background()
	m.RecordGeneration(ctx, "BAAI/bge-small-en-v1.5", "embed_documents", 100*time.Millisecond, 10, nil)
	m.RecordGeneration(ctx, "BAAI/bge-small-en-v1.5", "embed_query", 50*time.Millisecond, 1, nil)
	m.RecordGeneration(ctx, "BAAI/bge-small-en-v1.5", "embed_documents", 25*time.Millisecond, 5, errors.New("generation failed"))

	got := collect(t, reader)

	duration, ok := got["ragstore.embedding.generation_duration_seconds"]
	if !ok {
		t.Fatal("duration histogram not found")
	}
	var count uint64
	for _, dp := range duration.Data.(metricdata.Histogram[float64]).DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("expected 3 duration recordings, got %d", count)
	}
	if n := len(duration.Data.(metricdata.Histogram[float64]).DataPoints); n != 2 {
		t.Errorf("expected 2 model/operation combinations, got %d", n)
	}

	batch, ok := got["ragstore.embedding.batch_size"]
	if !ok {
		t.Fatal("batch size histogram not found")
	}
	count = 0
	for _, dp := range batch.Data.(metricdata.Histogram[int64]).DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("expected 3 batch size recordings, got %d", count)
	}

	errs, ok := got["ragstore.embedding.errors_total"]
	if !ok {
		t.Fatal("errors counter not found")
	}
	var total int64
	for _, dp := range errs.Data.(metricdata.Sum[int64]).DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("expected 1 error, got %d", total)
	}
}

func TestInstrument(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetrics(mp.Meter(embeddingsInstrumentationName), nil)

	p := Instrument(&stubProvider{dim: 3}, "stub", m)
	ctx := context.Background()

	if _, err := p.EmbedDocuments(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if _, err := p.EmbedQuery(ctx, ""); err == nil {
		t.Fatal("expected error for empty query")
	}
	if p.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", p.Dimension())
	}

	got := collect(t, reader)
	errs := got["ragstore.embedding.errors_total"].Data.(metricdata.Sum[int64])
	if len(errs.DataPoints) != 1 || errs.DataPoints[0].Value != 1 {
		t.Errorf("expected one embed_query error, got %+v", errs.DataPoints)
	}

	if Instrument(&stubProvider{}, "stub", nil) == nil {
		t.Error("Instrument with nil metrics should return the provider")
	}
}

// stubProvider returns constant vectors of length dim.
type stubProvider struct {
	dim    int
	closed bool
}

func (s *stubProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func (s *stubProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return make([]float32, s.dim), nil
}

func (s *stubProvider) Dimension() int { return s.dim }

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}
