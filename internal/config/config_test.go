package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log_level: debug
ingest:
  mqtt:
    enabled: true
    broker_url: tcp://broker:1883
reconcile:
  offline_after: 2m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if cfg.Ingest.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("broker url: %s", cfg.Ingest.MQTT.BrokerURL)
	}
	if cfg.Reconcile.OfflineAfter != 2*time.Minute {
		t.Fatalf("offline_after: %v", cfg.Reconcile.OfflineAfter)
	}
	// Untouched sections keep their defaults.
	if cfg.Alerts.StoreLimit != 100 {
		t.Fatalf("alert store limit default lost: %d", cfg.Alerts.StoreLimit)
	}
	if cfg.Hub.StatusInterval != 30*time.Second {
		t.Fatalf("status interval default lost: %v", cfg.Hub.StatusInterval)
	}
}

func TestHubIntervalOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
hub:
  status_interval: 10s
  session_buffer: -1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hub.StatusInterval != 10*time.Second {
		t.Fatalf("status interval: %v", cfg.Hub.StatusInterval)
	}
	// Nonsense values fall back to defaults.
	if cfg.Hub.SessionBuffer != 64 {
		t.Fatalf("session buffer: %d", cfg.Hub.SessionBuffer)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"log_level": "warn", "api": {"enabled": true, "addr": ":9090"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.API.Addr != ":9090" {
		t.Fatalf("json config not applied")
	}
}

func TestValidateRejectsBadDriver(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
history:
  enabled: true
  driver: mongodb
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("unsupported driver should fail validation")
	}
}

func TestValidateKafkaRequiresBrokers(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
ingest:
  kafka:
    enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("kafka without brokers should fail validation")
	}
}

func TestManagerMissingFileFallsBack(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be fatal: %v", err)
	}
	if m.Get().Ingest.ChannelBuffer != 10000 {
		t.Fatalf("defaults not applied")
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "config.yaml", `log_level: info`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if err := os.WriteFile(path, []byte(`log_level: error`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Get().LogLevel != "error" {
		t.Fatalf("reload not visible through Get")
	}
}
