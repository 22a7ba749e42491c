package cliconfig

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bft-labs/msgchan"
	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/channel/udpchan"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// Config holds CLI configuration for msgchan.
type Config struct {
	Transport string
	Path      string

	Address         string
	Role            string
	ConnectAttempts int
	ConnectDelay    time.Duration
	MaxConnectDelay time.Duration

	MaxMessageSize int
	RingCapacity   int
	QueueCapacity  int
	CloseTimeout   time.Duration

	Count       int
	PayloadSize int
	MessageType int
	WaitTimeout time.Duration

	LogLevel    string
	MetricsAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	lib := msgchan.DefaultConfig()
	return Config{
		Transport:       string(lib.Transport),
		Address:         lib.Address,
		Role:            lib.Role.String(),
		ConnectAttempts: lib.ConnectAttempts,
		ConnectDelay:    lib.ConnectDelay,
		MaxMessageSize:  lib.MaxMessageSize,
		RingCapacity:    lib.RingCapacity,
		QueueCapacity:   lib.QueueCapacity,
		CloseTimeout:    lib.CloseTimeout,
		Count:           100000,
		PayloadSize:     128,
		MessageType:     1,
		WaitTimeout:     30 * time.Second,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.ChannelConfig(); err != nil {
		return err
	}
	if c.PayloadSize < 0 || c.PayloadSize > c.MaxMessageSize {
		return fmt.Errorf("payload size %d must be within [0, max-message-size %d]", c.PayloadSize, c.MaxMessageSize)
	}
	if c.MessageType == int(frame.CloseNotifyType) || c.MessageType < math.MinInt32 || c.MessageType > math.MaxInt32 {
		return fmt.Errorf("message type %d is reserved or out of int32 range", c.MessageType)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait timeout must not be negative")
	}
	return nil
}

// ChannelConfig converts the CLI settings to a library configuration.
func (c *Config) ChannelConfig() (msgchan.Config, error) {
	transport, err := msgchan.ParseTransport(c.Transport)
	if err != nil {
		return msgchan.Config{}, err
	}
	role, err := udpchan.ParseRole(c.Role)
	if err != nil {
		return msgchan.Config{}, err
	}
	cfg := msgchan.Config{
		Transport:       transport,
		MaxMessageSize:  c.MaxMessageSize,
		Path:            c.Path,
		Address:         c.Address,
		Role:            role,
		ConnectAttempts: c.ConnectAttempts,
		ConnectDelay:    c.ConnectDelay,
		MaxConnectDelay: c.MaxConnectDelay,
		RingCapacity:    c.RingCapacity,
		QueueCapacity:   c.QueueCapacity,
		CloseTimeout:    c.CloseTimeout,
		Metrics:         c.MetricsAddr != "",
	}
	if err := cfg.Validate(); err != nil {
		return msgchan.Config{}, err
	}
	if c.CloseTimeout < 0 {
		return msgchan.Config{}, fmt.Errorf("%w: close timeout must not be negative", channel.ErrInvalidArgument)
	}
	return cfg, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int from a pointer, so an explicit zero in a file is
// honored for keys where zero is meaningful.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings. Zero and negative
// values are applied too; Validate rejects the ones a key does not allow.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}
