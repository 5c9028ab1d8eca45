package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if p.TracerProvider() == nil {
		t.Fatal("TracerProvider() = nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSetup_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{EnableTraces: true, Writer: &buf})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !p.Enabled() {
		t.Fatal("Enabled() = false, want true")
	}

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "fileaccess.open")
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "fileaccess.open") {
		t.Errorf("exported output missing span name:\n%s", out)
	}
	if !strings.Contains(out, "inkwell") {
		t.Errorf("exported output missing default service name:\n%s", out)
	}

	// Second shutdown is a no-op.
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	if p.Enabled() {
		t.Error("nil provider reports enabled")
	}
	if p.TracerProvider() == nil {
		t.Error("nil provider returned nil TracerProvider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
