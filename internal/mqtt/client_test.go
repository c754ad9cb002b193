package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"humidity-monitor/internal/config"
	"humidity-monitor/internal/types"
)

func TestTelemetryTopic(t *testing.T) {
	if got := TelemetryTopic("greenhouse"); got != "stations/greenhouse/telemetry" {
		t.Errorf("TelemetryTopic() = %q", got)
	}
}

func TestEncodeTelemetry(t *testing.T) {
	ts := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	data, err := encodeTelemetry("site", "lab", types.Sample{Timestamp: ts, TemperatureF: 68, HumidityPct: 45})
	if err != nil {
		t.Fatalf("encodeTelemetry: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	want := map[string]any{
		"station_id":    "lab",
		"site":          "site",
		"timestamp":     "2024-01-31T23:59:59Z",
		"temperature_f": float64(68),
		"humidity_pct":  float64(45),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload[%s] = %v, want %v", k, got[k], v)
		}
	}
}

func TestNewClient_RequiresBroker(t *testing.T) {
	if _, err := NewClient(config.Config{}, nil); err == nil {
		t.Fatal("NewClient without broker: error = nil")
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c, err := NewClient(config.Config{MQTTBroker: "127.0.0.1", MQTTPort: 1, MQTTClientID: "test"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Publish(types.Sample{Timestamp: time.Now()}); err == nil {
		t.Fatal("Publish before connect: error = nil")
	}
}

func TestConnect_AfterDisconnect(t *testing.T) {
	c, err := NewClient(config.Config{MQTTBroker: "127.0.0.1", MQTTPort: 1, MQTTClientID: "test"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.Disconnect()
	c.Disconnect()

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Disconnect: error = nil")
	}
}
