package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, "debug")

	l.Info("frame written",
		Transport("mmap"),
		Int32("type", 7),
		Int("len", 64),
		Bool("blocked", false),
		Duration("wait", 2*time.Millisecond),
		Err(errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	if entry["message"] != "frame written" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["transport"] != "mmap" {
		t.Errorf("transport = %v, want mmap", entry["transport"])
	}
	if entry["type"] != float64(7) {
		t.Errorf("type = %v, want 7", entry["type"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		warning bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"", false, true},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewZerologAdapterWithWriter(&buf, tt.level)

			l.Debug("d")
			if got := buf.Len() > 0; got != tt.debug {
				t.Errorf("debug emitted = %v, want %v", got, tt.debug)
			}
			buf.Reset()

			l.Warn("w")
			if got := buf.Len() > 0; got != tt.warning {
				t.Errorf("warn emitted = %v, want %v", got, tt.warning)
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Error("OrNop(nil) should return NopLogger")
	}
	z := NewZerologAdapterWithWriter(&bytes.Buffer{}, "info")
	if OrNop(z) != Logger(z) {
		t.Error("OrNop should pass through a non-nil logger")
	}
}
