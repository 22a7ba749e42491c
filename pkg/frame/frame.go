package frame

import (
	"bytes"
	"fmt"
)

// Reserved close-notification pairing. A frame with this type is never user data.
const (
	CloseNotifyType     int32 = -1
	CloseNotifySequence int32 = -1
)

// Frame is one discrete message: type, sequence and payload.
type Frame struct {
	Type     int32
	Sequence int32
	Payload  []byte
}

// New returns a frame owning a fresh copy of payload.
func New(typ, seq int32, payload []byte) Frame {
	return Frame{Type: typ, Sequence: seq, Payload: clonePayload(payload)}
}

// CloseNotify returns the close-notification sentinel.
func CloseNotify() Frame {
	return Frame{Type: CloseNotifyType, Sequence: CloseNotifySequence}
}

// IsCloseNotify reports whether f is the close-notification sentinel.
func (f Frame) IsCloseNotify() bool {
	return f.Type == CloseNotifyType && f.Sequence == CloseNotifySequence
}

// Clone returns a copy of f that owns its payload.
func (f Frame) Clone() Frame {
	return New(f.Type, f.Sequence, f.Payload)
}

// Len returns the payload length.
func (f Frame) Len() int {
	return len(f.Payload)
}

// Equal reports whether f and o carry identical type, sequence and payload bytes.
// A nil payload equals an empty one.
func (f Frame) Equal(o Frame) bool {
	return f.Type == o.Type && f.Sequence == o.Sequence && bytes.Equal(f.Payload, o.Payload)
}

// String renders the frame header for logs; the payload is summarised by length.
func (f Frame) String() string {
	if f.IsCloseNotify() {
		return "frame{close-notify}"
	}
	return fmt.Sprintf("frame{type=%d seq=%d len=%d}", f.Type, f.Sequence, len(f.Payload))
}

func clonePayload(p []byte) []byte {
	if len(p) == 0 {
		return []byte{}
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
