package telemetry

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/dunamismax/smartlearn/internal/config"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), ServiceAPI, config.TracingConfig{Exporter: "none"}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown, got %v", err)
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), ServiceAPI, config.TracingConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestSetupTracingOTLPRequiresEndpoint(t *testing.T) {
	if _, err := SetupTracing(context.Background(), ServiceWorker, config.TracingConfig{Exporter: "otlp"}, nil); err == nil {
		t.Fatal("expected error for missing otlp endpoint")
	}
}
