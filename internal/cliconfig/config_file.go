package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Transport       string `toml:"transport"`
	Path            string `toml:"path"`
	Address         string `toml:"address"`
	Role            string `toml:"role"`
	MaxMessageSize  *int   `toml:"max_message_size"`
	RingCapacity    int    `toml:"ring_capacity"`
	QueueCapacity   int    `toml:"queue_capacity"`
	ConnectAttempts int    `toml:"connect_attempts"`
	ConnectDelay    string `toml:"connect_delay"`
	MaxConnectDelay string `toml:"max_connect_delay"`
	CloseTimeout    string `toml:"close_timeout"`
	Count           *int   `toml:"count"`
	PayloadSize     *int   `toml:"payload_size"`
	MessageType     *int   `toml:"message_type"`
	LogLevel        string `toml:"log_level"`
	MetricsAddr     string `toml:"metrics_addr"`
	WaitTimeout     string `toml:"wait_timeout"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.msgchan/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".msgchan", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("path", fc.Path, &cfg.Path)
	s.setString("address", fc.Address, &cfg.Address)
	s.setString("role", fc.Role, &cfg.Role)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	if err := s.setDuration("connect-delay", fc.ConnectDelay, &cfg.ConnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-connect-delay", fc.MaxConnectDelay, &cfg.MaxConnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("close-timeout", fc.CloseTimeout, &cfg.CloseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("wait-timeout", fc.WaitTimeout, &cfg.WaitTimeout); err != nil {
		return err
	}

	s.setInt("ring-capacity", fc.RingCapacity, &cfg.RingCapacity)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setInt("connect-attempts", fc.ConnectAttempts, &cfg.ConnectAttempts)

	s.setIntPtr("max-message-size", fc.MaxMessageSize, &cfg.MaxMessageSize)
	s.setIntPtr("count", fc.Count, &cfg.Count)
	s.setIntPtr("payload-size", fc.PayloadSize, &cfg.PayloadSize)
	s.setIntPtr("message-type", fc.MessageType, &cfg.MessageType)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
