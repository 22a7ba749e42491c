package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/channel/queuechan"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordWrite("register-test", 10, time.Millisecond, nil)
	RecordRead("register-test", 10, nil)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{fmt.Errorf("%w: peer gone", channel.ErrEndOfStream), "end_of_stream"},
		{fmt.Errorf("%w: refused", channel.ErrConnection), "connection"},
		{channel.ErrInvalidArgument, "invalid_argument"},
		{channel.ErrProtocolViolation, "protocol_violation"},
		{channel.ErrNotOpen, "not_open"},
		{channel.ErrAlreadyOpen, "already_open"},
		{channel.ErrClosed, "closed"},
		{channel.ErrNoMessage, "no_message"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInstrumentedPair(t *testing.T) {
	const transport = "instrumented-queue"

	q, err := queuechan.New(8)
	if err != nil {
		t.Fatalf("queuechan.New() error = %v", err)
	}
	qw, _ := queuechan.NewWriter(q, channel.WithMaxMessageSize(16))
	qr, _ := queuechan.NewReader(q)
	w := InstrumentWriter(qw, transport)
	r := InstrumentReader(qr, transport)

	ctx := context.Background()
	if err := w.Open(ctx); err != nil {
		t.Fatalf("writer Open() error = %v", err)
	}
	if err := r.Open(ctx); err != nil {
		t.Fatalf("reader Open() error = %v", err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		if err := w.Write(1, int32(i), []byte("abcd")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Write(1, 9, make([]byte, 17)); !errors.Is(err, channel.ErrInvalidArgument) {
		t.Fatalf("oversize Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := r.ReadMessage(); err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := r.ReadMessage(); !errors.Is(err, channel.ErrEndOfStream) {
			t.Fatalf("ReadMessage() after close error = %v", err)
		}
	}
	if _, err := r.HasNext(); !errors.Is(err, channel.ErrEndOfStream) {
		t.Fatalf("HasNext() after close error = %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"frames written", testutil.ToFloat64(framesTotal.WithLabelValues(transport, DirectionWrite)), 3},
		{"bytes written", testutil.ToFloat64(bytesTotal.WithLabelValues(transport, DirectionWrite)), 12},
		{"frames read", testutil.ToFloat64(framesTotal.WithLabelValues(transport, DirectionRead)), 3},
		{"bytes read", testutil.ToFloat64(bytesTotal.WithLabelValues(transport, DirectionRead)), 12},
		{"invalid writes", testutil.ToFloat64(errorsTotal.WithLabelValues(transport, DirectionWrite, "invalid_argument")), 1},
		{"end of stream", testutil.ToFloat64(endOfStreamTotal.WithLabelValues(transport, DirectionRead)), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if n := testutil.CollectAndCount(writeDuration, "msgchan_channel_write_duration_seconds"); n == 0 {
		t.Error("write duration histogram has no series")
	}
}

func TestUnwrap(t *testing.T) {
	q, _ := queuechan.New(1)
	qw, _ := queuechan.NewWriter(q)
	qr, _ := queuechan.NewReader(q)

	if InstrumentWriter(qw, "unwrap").Unwrap() != channel.Writer(qw) {
		t.Error("Writer.Unwrap() did not return the wrapped writer")
	}
	if InstrumentReader(qr, "unwrap").Unwrap() != channel.Reader(qr) {
		t.Error("Reader.Unwrap() did not return the wrapped reader")
	}
}

func TestMaxMessageSize(t *testing.T) {
	q, _ := queuechan.New(1)
	qw, _ := queuechan.NewWriter(q, channel.WithMaxMessageSize(32))
	qr, _ := queuechan.NewReader(q)

	var w channel.Writer = InstrumentWriter(qw, "limit")
	s, ok := w.(channel.MaxMessageSizer)
	if !ok {
		t.Fatal("instrumented writer does not expose MaxMessageSize")
	}
	if got := s.MaxMessageSize(); got != 32 {
		t.Errorf("writer MaxMessageSize() = %d, want 32", got)
	}
	if got := InstrumentReader(qr, "limit").MaxMessageSize(); got != channel.NoMessageLimit {
		t.Errorf("reader MaxMessageSize() = %d, want NoMessageLimit", got)
	}
}
