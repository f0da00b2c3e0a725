package config

import (
	"os"
	"sync/atomic"
)

// Manager holds the live configuration behind an atomic pointer so hot
// paths can read it without locking. Reload is wired to SIGHUP; loops
// that consult tunables read through Get on every iteration so a reload
// takes effect without restarts.
type Manager struct {
	path string
	cfg  atomic.Value
}

// NewManager loads the config at path. A missing file falls back to
// defaults; any other load failure is fatal.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	return cfg, nil
}
