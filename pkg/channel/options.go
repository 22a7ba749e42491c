package channel

import (
	"fmt"
	"time"

	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// DefaultCloseTimeout bounds how long Close waits to hand the close
// notification to a slow or absent peer.
const DefaultCloseTimeout = time.Second

// Options holds the settings common to all transports.
type Options struct {
	Logger       log.Logger
	CloseTimeout time.Duration

	// MaxMessageSize caps payloads on transports that have no structural
	// limit of their own. NoMessageLimit disables the check.
	MaxMessageSize int
}

// NoMessageLimit is the MaxMessageSize of an unbounded transport.
const NoMessageLimit = -1

// Option configures optional behavior of a transport endpoint.
type Option func(*Options)

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCloseTimeout sets how long Close may wait to deliver the close
// notification before giving up.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CloseTimeout = d
	}
}

// WithMaxMessageSize bounds payloads on transports without a built-in limit.
// Transports with a fixed limit take it as a constructor argument instead.
func WithMaxMessageSize(n int) Option {
	return func(o *Options) {
		o.MaxMessageSize = n
	}
}

// ApplyOptions returns defaults overridden by opts.
func ApplyOptions(opts ...Option) Options {
	o := Options{
		Logger:         log.NopLogger{},
		CloseTimeout:   DefaultCloseTimeout,
		MaxMessageSize: NoMessageLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.Logger = log.OrNop(o.Logger)
	if o.CloseTimeout < 0 {
		o.CloseTimeout = 0
	}
	if o.MaxMessageSize < 0 {
		o.MaxMessageSize = NoMessageLimit
	}
	return o
}

// ValidateWrite rejects frames a writer must not send.
func ValidateWrite(typ int32, payload []byte, maxMessageSize int) error {
	if typ == frame.CloseNotifyType {
		return fmt.Errorf("%w: type %d is reserved for close notification", ErrInvalidArgument, typ)
	}
	if len(payload) > maxMessageSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds max message size %d", ErrInvalidArgument, len(payload), maxMessageSize)
	}
	return nil
}

// ValidateMaxMessageSize rejects unusable payload limits at construction.
func ValidateMaxMessageSize(maxMessageSize int) error {
	if maxMessageSize < 0 || maxMessageSize > MaxMessageSizeLimit {
		return fmt.Errorf("%w: max message size %d out of range [0, %d]", ErrInvalidArgument, maxMessageSize, MaxMessageSizeLimit)
	}
	return nil
}

// MaxMessageSizeLimit caps payloads so sizes always fit the int32 wire fields.
const MaxMessageSizeLimit = 1<<31 - 1 - 64
