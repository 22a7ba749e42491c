package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// Writer records metrics for every Write of the wrapped writer.
type Writer struct {
	next      channel.Writer
	transport string
}

// InstrumentWriter wraps w. transport labels the recorded series.
func InstrumentWriter(w channel.Writer, transport string) *Writer {
	RegisterMetrics()
	return &Writer{next: w, transport: transport}
}

func (w *Writer) Open(ctx context.Context) error { return w.next.Open(ctx) }
func (w *Writer) Close() error                   { return w.next.Close() }

func (w *Writer) Write(typ, seq int32, payload []byte) error {
	start := time.Now()
	err := w.next.Write(typ, seq, payload)
	RecordWrite(w.transport, len(payload), time.Since(start), err)
	return err
}

// MaxMessageSize reports the wrapped writer's limit, or
// channel.NoMessageLimit when it does not expose one.
func (w *Writer) MaxMessageSize() int { return maxMessageSize(w.next) }

// Unwrap returns the wrapped writer.
func (w *Writer) Unwrap() channel.Writer { return w.next }

// Reader records metrics for every ReadMessage of the wrapped reader.
type Reader struct {
	next      channel.Reader
	transport string
	ended     atomic.Bool
}

// InstrumentReader wraps r. transport labels the recorded series.
func InstrumentReader(r channel.Reader, transport string) *Reader {
	RegisterMetrics()
	return &Reader{next: r, transport: transport}
}

func (r *Reader) Open(ctx context.Context) error { return r.next.Open(ctx) }
func (r *Reader) Close() error                   { return r.next.Close() }

// HasNext is not recorded; a close notification it observes is.
func (r *Reader) HasNext() (bool, error) {
	ok, err := r.next.HasNext()
	if err != nil {
		r.record(0, err)
	}
	return ok, err
}

func (r *Reader) ReadMessage() (frame.Frame, error) {
	f, err := r.next.ReadMessage()
	r.record(f.Len(), err)
	return f, err
}

// record counts end of stream once, however often the reader reports it.
func (r *Reader) record(n int, err error) {
	if errors.Is(err, channel.ErrEndOfStream) && r.ended.Swap(true) {
		return
	}
	RecordRead(r.transport, n, err)
}

// MaxMessageSize reports the wrapped reader's limit, or
// channel.NoMessageLimit when it does not expose one.
func (r *Reader) MaxMessageSize() int { return maxMessageSize(r.next) }

// Unwrap returns the wrapped reader.
func (r *Reader) Unwrap() channel.Reader { return r.next }

func maxMessageSize(v any) int {
	if s, ok := v.(channel.MaxMessageSizer); ok {
		return s.MaxMessageSize()
	}
	return channel.NoMessageLimit
}

var (
	_ channel.Writer          = (*Writer)(nil)
	_ channel.Reader          = (*Reader)(nil)
	_ channel.MaxMessageSizer = (*Writer)(nil)
	_ channel.MaxMessageSizer = (*Reader)(nil)
)
