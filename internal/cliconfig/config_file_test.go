package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	zero := 0
	size := 256
	msgType := 9

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Transport:       "udp",
				Address:         "127.0.0.1:7500",
				Role:            "server",
				MaxMessageSize:  &size,
				ConnectAttempts: 3,
				ConnectDelay:    "250ms",
				MaxConnectDelay: "4s",
				CloseTimeout:    "3s",
				PayloadSize:     &zero,
				MessageType:     &msgType,
				MetricsAddr:     ":9100",
			},
			changed: map[string]bool{},
			initial: Config{PayloadSize: 64},
			expected: Config{
				Transport:       "udp",
				Address:         "127.0.0.1:7500",
				Role:            "server",
				MaxMessageSize:  256,
				ConnectAttempts: 3,
				ConnectDelay:    250 * time.Millisecond,
				MaxConnectDelay: 4 * time.Second,
				CloseTimeout:    3 * time.Second,
				PayloadSize:     0,
				MessageType:     9,
				MetricsAddr:     ":9100",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Transport: "mmap",
				Path:      "/config/chan",
			},
			changed: map[string]bool{"transport": true},
			initial: Config{Transport: "ring"},
			expected: Config{
				Transport: "ring",
				Path:      "/config/chan",
			},
		},
		{
			name: "missing keys keep current values",
			fileConfig: FileConfig{
				RingCapacity: 0,
			},
			changed:  map[string]bool{},
			initial:  Config{RingCapacity: 16, Count: 7},
			expected: Config{RingCapacity: 16, Count: 7},
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				WaitTimeout: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
transport = "mmap"
path = "/dev/shm/orders"
max_message_size = 4096
ring_capacity = 256
connect_delay = "500ms"
max_connect_delay = "8s"
payload_size = 0
log_level = "debug"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Transport != "mmap" {
		t.Errorf("Transport = %v, want mmap", fc.Transport)
	}
	if fc.Path != "/dev/shm/orders" {
		t.Errorf("Path = %v, want /dev/shm/orders", fc.Path)
	}
	if fc.MaxMessageSize == nil || *fc.MaxMessageSize != 4096 {
		t.Errorf("MaxMessageSize = %v, want 4096", fc.MaxMessageSize)
	}
	if fc.RingCapacity != 256 {
		t.Errorf("RingCapacity = %v, want 256", fc.RingCapacity)
	}
	if fc.ConnectDelay != "500ms" {
		t.Errorf("ConnectDelay = %v, want 500ms", fc.ConnectDelay)
	}
	if fc.MaxConnectDelay != "8s" {
		t.Errorf("MaxConnectDelay = %v, want 8s", fc.MaxConnectDelay)
	}
	if fc.PayloadSize == nil || *fc.PayloadSize != 0 {
		t.Errorf("PayloadSize = %v, want explicit 0", fc.PayloadSize)
	}
	if fc.Count != nil {
		t.Errorf("Count = %v, want unset", *fc.Count)
	}
	if fc.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", fc.LogLevel)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
transport = "mmap"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".msgchan") {
		t.Errorf("DefaultConfigPath() = %v, should contain .msgchan", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
