package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil)).With("app", "humidity-monitor")

	Component(base, "mirror").Info("mirror partition selected", "document", "lab-2024-01")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	want := map[string]string{
		"app":       "humidity-monitor",
		"component": "mirror",
		"document":  "lab-2024-01",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("record[%s] = %v, want %q", k, got[k], v)
		}
	}
}

func TestComponent_NilLoggerUsesDefault(t *testing.T) {
	if Component(nil, "sensor") == nil {
		t.Fatal("Component(nil) returned nil")
	}
}
