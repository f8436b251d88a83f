package services_test

import (
	"context"
	"testing"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAttemptID(ctx, "attempt-1")
	ctx = services.WithTrigger(ctx, "start")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.AttemptIDFromContext(ctx); !ok || id != "attempt-1" {
		t.Fatalf("unexpected attempt id: %v %v", id, ok)
	}
	if trig, ok := services.TriggerFromContext(ctx); !ok || trig != "start" {
		t.Fatalf("unexpected trigger: %v %v", trig, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTrigger(ctx, "")
	ctx = services.WithAttemptID(ctx, "")
	if _, ok := services.TriggerFromContext(ctx); ok {
		t.Fatal("expected no trigger value")
	}
	if _, ok := services.AttemptIDFromContext(ctx); ok {
		t.Fatal("expected no attempt value")
	}
}
