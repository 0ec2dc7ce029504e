package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/geocoder89/libraryhub/internal/actorctx"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "libraryhub-api")

	logger.Debug("hidden")
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["service"] != "libraryhub-api" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestTraceHandler_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("trace_id missing or wrong: %v", rec)
	}
	if _, ok := rec["span_id"]; !ok {
		t.Fatalf("span_id missing: %v", rec)
	}
}

func TestTraceHandler_AddsRequestIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "")

	ctx := actorctx.WithRequestID(context.Background(), "req-1")
	ctx = actorctx.WithUserID(ctx, "user-1")

	logger.InfoContext(ctx, "borrowed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["request_id"] != "req-1" || rec["user_id"] != "user-1" {
		t.Fatalf("identity missing: %v", rec)
	}

	// an explicit attribute is not duplicated
	buf.Reset()
	logger.InfoContext(ctx, "http_request", "request_id", "req-1")
	if n := bytes.Count(buf.Bytes(), []byte(`"request_id"`)); n != 1 {
		t.Fatalf("request_id written %d times: %s", n, buf.String())
	}
}
