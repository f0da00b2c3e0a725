package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
	Hub       HubConfig       `json:"hub" yaml:"hub"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	API       APIConfig       `json:"api" yaml:"api"`
}

type IngestConfig struct {
	ChannelBuffer int          `json:"channel_buffer" yaml:"channel_buffer"`
	MQTT          MQTTConfig   `json:"mqtt" yaml:"mqtt"`
	Socket        SocketConfig `json:"socket" yaml:"socket"`
	Kafka         KafkaConfig  `json:"kafka" yaml:"kafka"`
}

type MQTTConfig struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	BrokerURL   string        `json:"broker_url" yaml:"broker_url"`
	ClientID    string        `json:"client_id" yaml:"client_id"`
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	TopicPrefix string        `json:"topic_prefix" yaml:"topic_prefix"`
	ConnectWait time.Duration `json:"connect_wait" yaml:"connect_wait"`
	MaxBackoff  time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

type SocketConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type ReconcileConfig struct {
	OfflineAfter  time.Duration `json:"offline_after" yaml:"offline_after"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

type AlertsConfig struct {
	StoreLimit    int           `json:"store_limit" yaml:"store_limit"`
	RetainFor     time.Duration `json:"retain_for" yaml:"retain_for"`
	PruneInterval time.Duration `json:"prune_interval" yaml:"prune_interval"`
}

type HubConfig struct {
	SessionBuffer  int           `json:"session_buffer" yaml:"session_buffer"`
	StatusInterval time.Duration `json:"status_interval" yaml:"status_interval"`
}

type HistoryConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	SampleFreshness time.Duration `json:"sample_freshness" yaml:"sample_freshness"`
	QueueSize       int           `json:"queue_size" yaml:"queue_size"`
	RawRetention    time.Duration `json:"raw_retention" yaml:"raw_retention"`
	EventRetention  time.Duration `json:"event_retention" yaml:"event_retention"`
	RetainEvery     time.Duration `json:"retain_every" yaml:"retain_every"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			MQTT: MQTTConfig{
				Enabled:     true,
				BrokerURL:   "tcp://localhost:1883",
				ClientID:    "fleetwatch",
				TopicPrefix: "ferry",
				ConnectWait: 10 * time.Second,
				MaxBackoff:  30 * time.Second,
			},
			Socket: SocketConfig{Enabled: true, Addr: ":9010", Path: "/ingest"},
			Kafka:  KafkaConfig{Enabled: false},
		},
		Reconcile: ReconcileConfig{
			OfflineAfter:  5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Alerts: AlertsConfig{
			StoreLimit:    100,
			RetainFor:     24 * time.Hour,
			PruneInterval: 10 * time.Minute,
		},
		Hub: HubConfig{SessionBuffer: 64, StatusInterval: 30 * time.Second},
		History: HistoryConfig{
			Enabled:         true,
			Driver:          "sqlite",
			DSN:             "file:fleetwatch.db?_pragma=busy_timeout(5000)",
			SampleFreshness: 30 * time.Second,
			QueueSize:       1024,
			RawRetention:    24 * time.Hour,
			EventRetention:  7 * 24 * time.Hour,
			RetainEvery:     time.Hour,
		},
		API: APIConfig{Enabled: true, Addr: ":8080"},
	}
}

// Load reads a YAML or JSON config file over the defaults. A missing
// file is not an error here; callers decide whether to tolerate it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Ingest.MQTT.TopicPrefix == "" {
		cfg.Ingest.MQTT.TopicPrefix = "ferry"
	}
	if cfg.Ingest.MQTT.ClientID == "" {
		cfg.Ingest.MQTT.ClientID = "fleetwatch"
	}
	if cfg.Ingest.MQTT.ConnectWait <= 0 {
		cfg.Ingest.MQTT.ConnectWait = 10 * time.Second
	}
	if cfg.Ingest.MQTT.MaxBackoff <= 0 {
		cfg.Ingest.MQTT.MaxBackoff = 30 * time.Second
	}
	if cfg.Ingest.Socket.Path == "" {
		cfg.Ingest.Socket.Path = "/ingest"
	}
	if cfg.Reconcile.OfflineAfter <= 0 {
		cfg.Reconcile.OfflineAfter = 5 * time.Minute
	}
	if cfg.Reconcile.SweepInterval <= 0 {
		cfg.Reconcile.SweepInterval = 30 * time.Second
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 100
	}
	if cfg.Alerts.RetainFor <= 0 {
		cfg.Alerts.RetainFor = 24 * time.Hour
	}
	if cfg.Alerts.PruneInterval <= 0 {
		cfg.Alerts.PruneInterval = 10 * time.Minute
	}
	if cfg.Hub.SessionBuffer <= 0 {
		cfg.Hub.SessionBuffer = 64
	}
	if cfg.Hub.StatusInterval <= 0 {
		cfg.Hub.StatusInterval = 30 * time.Second
	}
	if cfg.History.SampleFreshness <= 0 {
		cfg.History.SampleFreshness = 30 * time.Second
	}
	if cfg.History.QueueSize <= 0 {
		cfg.History.QueueSize = 1024
	}
	if cfg.History.RawRetention <= 0 {
		cfg.History.RawRetention = 24 * time.Hour
	}
	if cfg.History.EventRetention <= 0 {
		cfg.History.EventRetention = 7 * 24 * time.Hour
	}
	if cfg.History.RetainEvery <= 0 {
		cfg.History.RetainEvery = time.Hour
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.MQTT.Enabled && cfg.Ingest.MQTT.BrokerURL == "" {
		return errors.New("ingest.mqtt.broker_url required when ingest.mqtt.enabled is true")
	}
	if cfg.Ingest.Socket.Enabled && cfg.Ingest.Socket.Addr == "" {
		return errors.New("ingest.socket.addr required when ingest.socket.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.History.Enabled {
		switch strings.ToLower(cfg.History.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("history.driver unsupported: %q", cfg.History.Driver)
		}
	}
	return nil
}

func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
