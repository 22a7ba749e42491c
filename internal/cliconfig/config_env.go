package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (MSGCHAN_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", os.Getenv("MSGCHAN_TRANSPORT"), &cfg.Transport)
	s.setString("path", os.Getenv("MSGCHAN_PATH"), &cfg.Path)
	s.setString("address", os.Getenv("MSGCHAN_ADDRESS"), &cfg.Address)
	s.setString("role", os.Getenv("MSGCHAN_ROLE"), &cfg.Role)
	s.setString("log-level", os.Getenv("MSGCHAN_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("MSGCHAN_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("connect-delay", os.Getenv("MSGCHAN_CONNECT_DELAY"), &cfg.ConnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-connect-delay", os.Getenv("MSGCHAN_MAX_CONNECT_DELAY"), &cfg.MaxConnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("close-timeout", os.Getenv("MSGCHAN_CLOSE_TIMEOUT"), &cfg.CloseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("wait-timeout", os.Getenv("MSGCHAN_WAIT_TIMEOUT"), &cfg.WaitTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag string
		env  string
		dst  *int
	}{
		{"max-message-size", "MSGCHAN_MAX_MESSAGE_SIZE", &cfg.MaxMessageSize},
		{"ring-capacity", "MSGCHAN_RING_CAPACITY", &cfg.RingCapacity},
		{"queue-capacity", "MSGCHAN_QUEUE_CAPACITY", &cfg.QueueCapacity},
		{"connect-attempts", "MSGCHAN_CONNECT_ATTEMPTS", &cfg.ConnectAttempts},
		{"count", "MSGCHAN_COUNT", &cfg.Count},
		{"payload-size", "MSGCHAN_PAYLOAD_SIZE", &cfg.PayloadSize},
		{"message-type", "MSGCHAN_MESSAGE_TYPE", &cfg.MessageType},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	return nil
}
