package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestStartSpanRecordsAttributesAndError(t *testing.T) {
	recorder := newRecorder(t)

	ctx, span := StartSpan(context.Background(), "intake", "intake.process")
	AddSpanAttributes(ctx, attribute.String("collection.id", "col-1"))
	RecordError(ctx, errors.New("schema fetch failed"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	got := ended[0]
	if got.Name() != "intake.process" {
		t.Fatalf("span name = %q, want %q", got.Name(), "intake.process")
	}
	found := false
	for _, attr := range got.Attributes() {
		if attr.Key == "collection.id" && attr.Value.AsString() == "col-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("collection.id attribute missing from %v", got.Attributes())
	}
	if got.Status().Code != codes.Error {
		t.Fatalf("status code = %v, want %v", got.Status().Code, codes.Error)
	}
	if len(got.Events()) != 1 {
		t.Fatalf("recorded events = %d, want 1", len(got.Events()))
	}
}

func TestGetTraceIDMatchesSpan(t *testing.T) {
	newRecorder(t)

	ctx, span := StartSpan(context.Background(), "intake", "intake.chat")
	defer span.End()

	want := span.SpanContext().TraceID().String()
	if got := GetTraceID(ctx); got != want {
		t.Fatalf("GetTraceID = %q, want %q", got, want)
	}
}

func TestHelpersNoopWithoutSpan(t *testing.T) {
	ctx := context.Background()
	AddSpanAttributes(ctx, attribute.String("k", "v"))
	RecordError(ctx, errors.New("ignored"))
	if got := GetTraceID(ctx); got != "" {
		t.Fatalf("GetTraceID without span = %q, want empty", got)
	}
}

func TestRecordErrorIgnoresNil(t *testing.T) {
	recorder := newRecorder(t)

	ctx, span := StartSpan(context.Background(), "intake", "intake.process")
	RecordError(ctx, nil)
	span.End()

	got := recorder.Ended()[0]
	if got.Status().Code == codes.Error {
		t.Fatalf("nil error must not mark the span failed")
	}
}
