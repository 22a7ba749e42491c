package channel

import "errors"

// Channel errors. Transports wrap these with context; check them with errors.Is.
var (
	// ErrEndOfStream reports that the peer closed the channel in an orderly
	// way. It is the normal termination path, not a failure.
	ErrEndOfStream = errors.New("channel: end of stream")

	// ErrConnection reports that the transport could not establish or keep
	// its resource. The channel instance is unusable afterwards.
	ErrConnection = errors.New("channel: connection error")

	// ErrInvalidArgument reports a rejected write: an oversized payload or a
	// caller-built close notification.
	ErrInvalidArgument = errors.New("channel: invalid argument")

	// ErrProtocolViolation reports shared state observed in an impossible
	// configuration, such as a second writer on a mapped file.
	ErrProtocolViolation = errors.New("channel: protocol violation")

	// ErrNotOpen is returned by I/O on a channel that was never opened.
	ErrNotOpen = errors.New("channel: not open")

	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("channel: already open")

	// ErrClosed is returned by any operation but Close after Close.
	ErrClosed = errors.New("channel: closed")

	// ErrNoMessage is returned by ReadMessage on a poll-based transport when
	// no frame is published yet.
	ErrNoMessage = errors.New("channel: no message available")
)
