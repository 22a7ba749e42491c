package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/msgchan/internal/cliconfig"
	"github.com/bft-labs/msgchan/pkg/log"
)

func testApp(t *testing.T, modify func(*cliconfig.Config)) *app {
	t.Helper()
	cfg := cliconfig.DefaultConfig()
	cfg.Count = 200
	cfg.PayloadSize = 32
	modify(&cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return &app{
		cfg:    cfg,
		logger: log.NewZerologAdapterWithWriter(&bytes.Buffer{}, "error"),
	}
}

func TestBench(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*cliconfig.Config)
	}{
		{"queue", func(c *cliconfig.Config) { c.Transport = "queue" }},
		{"ring", func(c *cliconfig.Config) { c.Transport = "ring"; c.RingCapacity = 16 }},
		{"mmap", func(c *cliconfig.Config) {
			c.Transport = "mmap"
			c.Path = filepath.Join(t.TempDir(), "bench.mmap")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(t, tt.modify)
			if err := a.bench(); err != nil {
				t.Fatalf("bench() error = %v", err)
			}
		})
	}
}

func TestSend_RejectsInProcessTransport(t *testing.T) {
	a := testApp(t, func(c *cliconfig.Config) { c.Transport = "ring" })
	if err := a.send(); err == nil {
		t.Error("send() over ring succeeded, want error")
	}
}

func TestFillPayload(t *testing.T) {
	p := fillPayload(300)
	if len(p) != 300 {
		t.Fatalf("len = %d, want 300", len(p))
	}
	if p[1] != 1 || p[256] != 0 {
		t.Errorf("unexpected fill pattern: p[1]=%d p[256]=%d", p[1], p[256])
	}
}

func TestAppLog(t *testing.T) {
	var buf bytes.Buffer
	a := &app{logger: log.NewZerologAdapterWithWriter(&buf, "info")}

	a.log().Info().Str("transport", "queue").Msg("bench")
	a.log().Debug().Msg("filtered")

	out := buf.String()
	if !strings.Contains(out, `"transport":"queue"`) || !strings.Contains(out, `"message":"bench"`) {
		t.Errorf("log output = %q, want the info entry", out)
	}
	if strings.Contains(out, "filtered") {
		t.Errorf("debug entry written at info level: %q", out)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	a := &app{logger: log.NewZerologAdapterWithWriter(&buf, "info")}

	report(a.log().Info(), "sent", 10, 1<<20, time.Second)

	out := buf.String()
	for _, want := range []string{`"frames":10`, `"frames_per_sec":10`, `"mib_per_sec":10`, `"message":"sent"`} {
		if !strings.Contains(out, want) {
			t.Errorf("report output %q missing %s", out, want)
		}
	}
}
