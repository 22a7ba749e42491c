package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"MSGCHAN_TRANSPORT":         "mmap",
				"MSGCHAN_PATH":              "/dev/shm/chan",
				"MSGCHAN_ADDRESS":           "10.0.0.1:7000",
				"MSGCHAN_ROLE":              "server",
				"MSGCHAN_MAX_MESSAGE_SIZE":  "4096",
				"MSGCHAN_RING_CAPACITY":     "64",
				"MSGCHAN_QUEUE_CAPACITY":    "32",
				"MSGCHAN_CONNECT_ATTEMPTS":  "5",
				"MSGCHAN_CONNECT_DELAY":     "200ms",
				"MSGCHAN_MAX_CONNECT_DELAY": "2s",
				"MSGCHAN_CLOSE_TIMEOUT":     "2s",
				"MSGCHAN_COUNT":             "10",
				"MSGCHAN_PAYLOAD_SIZE":      "0",
				"MSGCHAN_MESSAGE_TYPE":      "-7",
				"MSGCHAN_LOG_LEVEL":         "debug",
				"MSGCHAN_METRICS_ADDR":      ":9100",
				"MSGCHAN_WAIT_TIMEOUT":      "1m",
			},
			changed: map[string]bool{},
			initial: Config{PayloadSize: 128},
			expected: Config{
				Transport:       "mmap",
				Path:            "/dev/shm/chan",
				Address:         "10.0.0.1:7000",
				Role:            "server",
				MaxMessageSize:  4096,
				RingCapacity:    64,
				QueueCapacity:   32,
				ConnectAttempts: 5,
				ConnectDelay:    200 * time.Millisecond,
				MaxConnectDelay: 2 * time.Second,
				CloseTimeout:    2 * time.Second,
				Count:           10,
				PayloadSize:     0,
				MessageType:     -7,
				LogLevel:        "debug",
				MetricsAddr:     ":9100",
				WaitTimeout:     time.Minute,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"MSGCHAN_PATH":  "/env/chan",
				"MSGCHAN_COUNT": "99",
			},
			changed: map[string]bool{"path": true, "count": true},
			initial: Config{Path: "/flag/chan", Count: 1},
			expected: Config{
				Path:  "/flag/chan",
				Count: 1,
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"MSGCHAN_CONNECT_DELAY": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"MSGCHAN_RING_CAPACITY": "not-a-number",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	count := 50
	fileConf := FileConfig{
		Transport: "ring",
		Path:      "/file/chan",
		Address:   "file:1",
		Count:     &count,
	}

	t.Setenv("MSGCHAN_PATH", "/env/chan")
	t.Setenv("MSGCHAN_ADDRESS", "env:2")

	// The CLI set --address.
	changed := map[string]bool{"address": true}
	cfg := Config{Address: "cli:3"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Address != "cli:3" {
		t.Errorf("Address = %v, want cli:3 (CLI should win)", cfg.Address)
	}
	if cfg.Path != "/env/chan" {
		t.Errorf("Path = %v, want /env/chan (env should override file)", cfg.Path)
	}
	if cfg.Transport != "ring" || cfg.Count != 50 {
		t.Errorf("Transport/Count = %v/%v, want ring/50 (file should set)", cfg.Transport, cfg.Count)
	}
}
