package logger

import (
	"context"
	"testing"

	"github.com/catalpa-cl/espresso/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("expected empty correlation ID, got %q", got)
	}

	// Set and retrieve
	ctx = WithCorrelationID(ctx, "corr-123")
	if got := CorrelationID(ctx); got != "corr-123" {
		t.Errorf("expected corr-123, got %q", got)
	}
}
