package ringchan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bft-labs/msgchan/internal/channeltest"
	"github.com/bft-labs/msgchan/pkg/channel"
)

func openPair(t *testing.T, capacity, maxMessageSize int, opts ...channel.Option) (*Ring, *Writer, *Reader) {
	t.Helper()

	ring, err := NewRing(capacity, maxMessageSize)
	if err != nil {
		t.Fatalf("NewRing() error = %v", err)
	}
	w := NewWriter(ring, opts...)
	r := NewReader(ring, opts...)
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("writer Open() error = %v", err)
	}
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("reader Open() error = %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return ring, w, r
}

func TestContract(t *testing.T) {
	for _, capacity := range []int{2, 8, 1024} {
		capacity := capacity
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			channeltest.Run(t, func(t *testing.T, maxMessageSize int) (channel.Writer, channel.Reader) {
				_, w, r := openPair(t, capacity, maxMessageSize)
				return w, r
			})
		})
	}
}

func TestNewRing_Validation(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		max      int
		wantErr  bool
	}{
		{"one slot", 1, 8, false},
		{"power of two", 64, 8, false},
		{"zero capacity", 0, 8, true},
		{"negative capacity", -4, 8, true},
		{"not power of two", 6, 8, true},
		{"negative max size", 4, -1, true},
		{"zero max size", 4, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring, err := NewRing(tt.capacity, tt.max)
			if tt.wantErr {
				if !errors.Is(err, channel.ErrInvalidArgument) {
					t.Errorf("NewRing(%d, %d) error = %v, want ErrInvalidArgument", tt.capacity, tt.max, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRing(%d, %d) error = %v", tt.capacity, tt.max, err)
			}
			if ring.Capacity() != tt.capacity {
				t.Errorf("Capacity() = %d, want %d", ring.Capacity(), tt.capacity)
			}
		})
	}
}

func TestFIFO_WritesBeforeReads(t *testing.T) {
	const capacity = 8
	_, w, r := openPair(t, capacity, 16)

	for i := 0; i < capacity; i++ {
		if err := w.Write(int32(i+1), int32(i), channeltest.Payload(i, i*2)); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}
	for i := 0; i < capacity; i++ {
		f, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() #%d error = %v", i, err)
		}
		if f.Sequence != int32(i) || f.Type != int32(i+1) {
			t.Fatalf("read %d: got type=%d seq=%d", i, f.Type, f.Sequence)
		}
		if !bytes.Equal(f.Payload, channeltest.Payload(i, i*2)) {
			t.Fatalf("read %d: payload mismatch", i)
		}
	}
	if ok, err := r.HasNext(); ok || err != nil {
		t.Errorf("HasNext() after draining = %v, %v; want false, nil", ok, err)
	}
}

func TestWriterBlocksWhenFull(t *testing.T) {
	ring, w, r := openPair(t, 2, 8)

	for i := 0; i < 2; i++ {
		if err := w.Write(1, int32(i), nil); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}
	if ring.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ring.Len())
	}

	done := make(chan error, 1)
	go func() { done <- w.Write(1, 2, nil) }()

	select {
	case err := <-done:
		t.Fatalf("Write() on a full ring returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	// Reading hands out slot 0; it is released by the next call.
	if _, err := r.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if _, err := r.HasNext(); err != nil {
		t.Fatalf("HasNext() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked Write() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer still blocked after a slot was released")
	}
}

func TestPayloadValidUntilNextCall(t *testing.T) {
	_, w, r := openPair(t, 2, 8)

	if err := w.Write(1, 1, []byte("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	view, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	kept := view.Clone()

	// The held slot is not reused while the reader holds it.
	if err := w.Write(1, 2, []byte("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if string(view.Payload) != "first" {
		t.Fatalf("view payload = %q before release, want first", view.Payload)
	}

	if ok, err := r.HasNext(); !ok || err != nil {
		t.Fatalf("HasNext() = %v, %v; want true, nil", ok, err)
	}
	if err := w.Write(1, 3, []byte("third")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if string(view.Payload) != "third" {
		t.Errorf("view payload = %q after slot reuse, want third", view.Payload)
	}
	if string(kept.Payload) != "first" {
		t.Errorf("cloned payload = %q, want first", kept.Payload)
	}
}

func TestReaderCloseReleasesBlockedWriter(t *testing.T) {
	_, w, r := openPair(t, 1, 8)

	if err := w.Write(1, 1, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Write(1, 2, nil) }()

	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("reader Close() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, channel.ErrEndOfStream) {
			t.Errorf("blocked Write() error = %v, want ErrEndOfStream", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer still blocked after reader closed")
	}
}

func TestWriterCloseOnFullRing(t *testing.T) {
	_, w, r := openPair(t, 2, 8, channel.WithCloseTimeout(20*time.Millisecond))

	for i := 0; i < 2; i++ {
		if err := w.Write(1, int32(i), nil); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}

	start := time.Now()
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("Close() took %v with a 20ms close timeout", d)
	}

	// Frames published before the close are still delivered, then the
	// closed flag ends the stream.
	for i := 0; i < 2; i++ {
		f, err := channeltest.Read(t, r)
		if err != nil {
			t.Fatalf("read %d error = %v", i, err)
		}
		if f.Sequence != int32(i) {
			t.Errorf("read %d: sequence = %d", i, f.Sequence)
		}
	}
	if _, err := channeltest.Read(t, r); !errors.Is(err, channel.ErrEndOfStream) {
		t.Errorf("read after close error = %v, want ErrEndOfStream", err)
	}
}

func TestCloseInterruptsBlockedWrite(t *testing.T) {
	_, w, _ := openPair(t, 1, 8)

	if err := w.Write(1, 1, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Write(1, 2, nil) }()

	time.Sleep(20 * time.Millisecond)
	go w.Close()

	select {
	case err := <-done:
		if !errors.Is(err, channel.ErrClosed) {
			t.Errorf("blocked Write() error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Write() still blocked after Close")
	}
}

func TestSingleAttachPerSide(t *testing.T) {
	ring, _, _ := openPair(t, 4, 8)

	if err := NewWriter(ring).Open(context.Background()); !errors.Is(err, channel.ErrConnection) {
		t.Errorf("second writer Open() error = %v, want ErrConnection", err)
	}
	if err := NewReader(ring).Open(context.Background()); !errors.Is(err, channel.ErrConnection) {
		t.Errorf("second reader Open() error = %v, want ErrConnection", err)
	}
}

func TestReadMessage_Empty(t *testing.T) {
	_, _, r := openPair(t, 4, 8)

	if ok, err := r.HasNext(); ok || err != nil {
		t.Errorf("HasNext() on empty ring = %v, %v; want false, nil", ok, err)
	}
	if _, err := r.ReadMessage(); !errors.Is(err, channel.ErrNoMessage) {
		t.Errorf("ReadMessage() on empty ring error = %v, want ErrNoMessage", err)
	}
}
