package channel

import (
	"context"

	"github.com/bft-labs/msgchan/pkg/frame"
)

// Writer is the sending end of a channel.
type Writer interface {
	// Open acquires the transport resource. It fails with an error wrapping
	// ErrConnection when the resource cannot be acquired.
	Open(ctx context.Context) error

	// Close releases the resource after a best-effort close notification to
	// the reader. It is idempotent and never fails because the peer is gone.
	Close() error

	// Write sends one frame. It fails with ErrInvalidArgument, before any I/O,
	// when typ is frame.CloseNotifyType or payload exceeds the transport limit.
	Write(typ, seq int32, payload []byte) error
}

// Reader is the receiving end of a channel.
type Reader interface {
	// Open acquires the transport resource.
	Open(ctx context.Context) error

	// Close releases the resource. It is idempotent.
	Close() error

	// HasNext reports whether a frame can be read without waiting. Poll-based
	// transports never block here; the datagram transport performs one
	// blocking receive. Once the peer has closed it returns ErrEndOfStream.
	HasNext() (bool, error)

	// ReadMessage consumes one frame. The close notification is reported as
	// ErrEndOfStream, and so is every later read. Poll-based transports return
	// ErrNoMessage when nothing is published.
	//
	// The payload may alias reader-owned memory and is only valid until the
	// next HasNext or ReadMessage call; use frame.Frame.Clone to retain it.
	ReadMessage() (frame.Frame, error)
}

// MaxMessageSizer is implemented by transports with a fixed payload limit.
type MaxMessageSizer interface {
	MaxMessageSize() int
}
