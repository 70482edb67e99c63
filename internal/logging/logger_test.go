package logging_test

import (
	"context"
	"testing"

	"reel/internal/logging"
	"reel/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewJSONFormat(t *testing.T) {
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithProjectID(context.Background(), "abc123")
	ctx = services.WithJobID(ctx, 7)
	ctx = services.WithJobKind(ctx, "edit")
	ctx = services.WithRequestID(ctx, "req-1")

	fields := logging.ContextFields(ctx)
	if len(fields) != 4 {
		t.Fatalf("expected 4 context fields, got %d", len(fields))
	}

	keys := map[string]bool{}
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{logging.FieldProjectID, logging.FieldJobID, logging.FieldJobKind, logging.FieldCorrelationID} {
		if !keys[want] {
			t.Fatalf("missing field %s", want)
		}
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("noop")
}
