// Package channeltest is the conformance suite for the channel contract.
// Every transport runs it from its own tests with a factory for opened
// writer/reader pairs.
package channeltest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// MaxMessageSize is the payload limit the suite constructs transports with.
const MaxMessageSize = 64

// ReadTimeout bounds every wait for a frame.
const ReadTimeout = 10 * time.Second

// Factory returns an opened writer/reader pair sharing one channel. It should
// register cleanup with t.Cleanup.
type Factory func(t *testing.T, maxMessageSize int) (channel.Writer, channel.Reader)

// Run executes the whole suite.
func Run(t *testing.T, newPair Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newPair) })
	t.Run("FIFO", func(t *testing.T) { testFIFO(t, newPair) })
	t.Run("ReservedTypeRejected", func(t *testing.T) { testReservedType(t, newPair) })
	t.Run("OversizeRejected", func(t *testing.T) { testOversize(t, newPair) })
	t.Run("CloseSignalsEndOfStream", func(t *testing.T) { testCloseSignalsEOF(t, newPair) })
	t.Run("WriteAfterClose", func(t *testing.T) { testWriteAfterClose(t, newPair) })
	t.Run("ReaderCloseIdempotent", func(t *testing.T) { testReaderClose(t, newPair) })
}

// Payload returns a deterministic payload of n bytes derived from seq.
func Payload(seq, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(seq*31 + i*7)
	}
	return p
}

// Read waits up to ReadTimeout for the next frame and returns an owned copy.
func Read(t *testing.T, r channel.Reader) (frame.Frame, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ReadTimeout)
	defer cancel()
	f, err := channel.ReadNext(ctx, r)
	if err != nil {
		return frame.Frame{}, err
	}
	return f.Clone(), nil
}

func testRoundTrip(t *testing.T, newPair Factory) {
	w, r := newPair(t, MaxMessageSize)

	sizes := []int{0, 1, MaxMessageSize / 2, MaxMessageSize}
	for i, n := range sizes {
		typ, seq := int32(i+1), int32(1000+i)
		payload := Payload(i, n)

		if err := w.Write(typ, seq, payload); err != nil {
			t.Fatalf("Write(size=%d) error = %v", n, err)
		}
		got, err := Read(t, r)
		if err != nil {
			t.Fatalf("read (size=%d) error = %v", n, err)
		}
		want := frame.New(typ, seq, payload)
		if !got.Equal(want) {
			t.Errorf("size %d: got %v %x, want %v %x", n, got, got.Payload, want, want.Payload)
		}
	}
}

func testFIFO(t *testing.T, newPair Factory) {
	w, r := newPair(t, MaxMessageSize)

	const n = 200
	errCh := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := w.Write(int32(i%5), int32(i), Payload(i, i%(MaxMessageSize+1))); err != nil {
				errCh <- fmt.Errorf("write %d: %w", i, err)
				return
			}
		}
		errCh <- w.Close()
	}()

	for i := 0; i < n; i++ {
		got, err := Read(t, r)
		if err != nil {
			t.Fatalf("read %d error = %v", i, err)
		}
		if got.Sequence != int32(i) || got.Type != int32(i%5) {
			t.Fatalf("read %d: got type=%d seq=%d, want type=%d seq=%d", i, got.Type, got.Sequence, i%5, i)
		}
		if !bytes.Equal(got.Payload, Payload(i, i%(MaxMessageSize+1))) {
			t.Fatalf("read %d: payload mismatch", i)
		}
	}

	if _, err := Read(t, r); !errors.Is(err, channel.ErrEndOfStream) {
		t.Errorf("read after last frame error = %v, want ErrEndOfStream", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("writer error = %v", err)
	}
}

func testReservedType(t *testing.T, newPair Factory) {
	w, _ := newPair(t, MaxMessageSize)

	err := w.Write(frame.CloseNotifyType, frame.CloseNotifySequence, nil)
	if !errors.Is(err, channel.ErrInvalidArgument) {
		t.Errorf("Write(CloseNotifyType) error = %v, want ErrInvalidArgument", err)
	}
	err = w.Write(frame.CloseNotifyType, 7, []byte("x"))
	if !errors.Is(err, channel.ErrInvalidArgument) {
		t.Errorf("Write(CloseNotifyType, 7) error = %v, want ErrInvalidArgument", err)
	}
}

func testOversize(t *testing.T, newPair Factory) {
	w, r := newPair(t, MaxMessageSize)

	err := w.Write(1, 1, make([]byte, MaxMessageSize+1))
	if !errors.Is(err, channel.ErrInvalidArgument) {
		t.Fatalf("Write(oversize) error = %v, want ErrInvalidArgument", err)
	}

	// The rejected write must not have produced a frame.
	if err := w.Write(2, 2, []byte("ok")); err != nil {
		t.Fatalf("Write() after rejection error = %v", err)
	}
	got, err := Read(t, r)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if got.Type != 2 || got.Sequence != 2 {
		t.Errorf("got %v, want the frame written after the rejected one", got)
	}
}

func testCloseSignalsEOF(t *testing.T, newPair Factory) {
	w, r := newPair(t, MaxMessageSize)

	if err := w.Write(3, 3, []byte("last")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Read(t, r)
	if err != nil || got.Sequence != 3 {
		t.Fatalf("read = %v, %v; want seq 3", got, err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("writer Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second writer Close() error = %v", err)
	}

	if _, err := Read(t, r); !errors.Is(err, channel.ErrEndOfStream) {
		t.Fatalf("read after close error = %v, want ErrEndOfStream", err)
	}
	if _, err := r.ReadMessage(); !errors.Is(err, channel.ErrEndOfStream) {
		t.Errorf("second ReadMessage() error = %v, want ErrEndOfStream", err)
	}
	if _, err := r.HasNext(); !errors.Is(err, channel.ErrEndOfStream) {
		t.Errorf("HasNext() after EOF error = %v, want ErrEndOfStream", err)
	}
}

func testWriteAfterClose(t *testing.T, newPair Factory) {
	w, _ := newPair(t, MaxMessageSize)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Write(1, 1, nil); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Write() after Close error = %v, want ErrClosed", err)
	}
}

func testReaderClose(t *testing.T, newPair Factory) {
	_, r := newPair(t, MaxMessageSize)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := r.ReadMessage(); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("ReadMessage() after Close error = %v, want ErrClosed", err)
	}
}
