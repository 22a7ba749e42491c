package queuechan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// New returns a queue with room for capacity frames.
func New(capacity int) (chan frame.Frame, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity %d must be positive", channel.ErrInvalidArgument, capacity)
	}
	return make(chan frame.Frame, capacity), nil
}

func validateQueue(q chan frame.Frame) error {
	if q == nil {
		return fmt.Errorf("%w: nil queue", channel.ErrInvalidArgument)
	}
	if cap(q) == 0 {
		return fmt.Errorf("%w: unbuffered queue", channel.ErrInvalidArgument)
	}
	return nil
}

// Writer enqueues frames.
type Writer struct {
	q      chan<- frame.Frame
	opts   channel.Options
	logger log.Logger
	lc     channel.Lifecycle

	mu       sync.Mutex
	opened   bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewWriter returns a writer enqueuing into q.
func NewWriter(q chan frame.Frame, opts ...channel.Option) (*Writer, error) {
	if err := validateQueue(q); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Writer{
		q:      q,
		opts:   o,
		logger: o.Logger,
		done:   make(chan struct{}),
	}, nil
}

// MaxMessageSize returns the payload limit, or channel.NoMessageLimit.
func (w *Writer) MaxMessageSize() int { return w.opts.MaxMessageSize }

// Open marks the writer open. The queue needs no other setup.
func (w *Writer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lc.Open(); err != nil {
		return err
	}
	w.opened = true
	w.logger.Debug("queue writer opened", log.Transport("queue"), log.Int("capacity", cap(w.q)))
	return nil
}

// Write enqueues a copy of the frame, blocking while the queue is full.
func (w *Writer) Write(typ, seq int32, payload []byte) error {
	limit := w.opts.MaxMessageSize
	if limit == channel.NoMessageLimit {
		limit = len(payload)
	}
	if err := channel.ValidateWrite(typ, payload, limit); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lc.Check(); err != nil {
		return err
	}

	select {
	case w.q <- frame.New(typ, seq, payload):
		return nil
	case <-w.done:
		return channel.ErrClosed
	}
}

// Close stops any blocked Write and enqueues the close notification, giving
// up after the close timeout if the queue stays full.
func (w *Writer) Close() error {
	if !w.lc.BeginClose() {
		return nil
	}
	w.doneOnce.Do(func() { close(w.done) })

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened {
		return nil
	}

	timer := time.NewTimer(w.opts.CloseTimeout)
	defer timer.Stop()

	select {
	case w.q <- frame.CloseNotify():
	case <-timer.C:
		w.logger.Warn("queue full, close notification not delivered",
			log.Transport("queue"), log.Duration("close_timeout", w.opts.CloseTimeout))
	}

	w.logger.Debug("queue writer closed", log.Transport("queue"))
	return nil
}

var _ channel.Writer = (*Writer)(nil)

// Reader dequeues frames.
type Reader struct {
	q      <-chan frame.Frame
	logger log.Logger
	lc     channel.Lifecycle

	mu       sync.Mutex
	pending  *frame.Frame
	done     chan struct{}
	doneOnce sync.Once
}

// NewReader returns a reader dequeuing from q.
func NewReader(q chan frame.Frame, opts ...channel.Option) (*Reader, error) {
	if err := validateQueue(q); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Reader{
		q:      q,
		logger: o.Logger,
		done:   make(chan struct{}),
	}, nil
}

// Open marks the reader open.
func (r *Reader) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Open(); err != nil {
		return err
	}
	r.logger.Debug("queue reader opened", log.Transport("queue"), log.Int("capacity", cap(r.q)))
	return nil
}

// HasNext reports whether a frame is queued. It never blocks; a frame it
// dequeues to find out is held for the next ReadMessage.
func (r *Reader) HasNext() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return false, err
	}
	if r.pending != nil {
		return true, nil
	}

	select {
	case f := <-r.q:
		if f.IsCloseNotify() {
			return false, r.peerClosed()
		}
		r.pending = &f
		return true, nil
	default:
		return false, nil
	}
}

// ReadMessage dequeues the next frame, blocking until one arrives or Close
// is called.
func (r *Reader) ReadMessage() (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return frame.Frame{}, err
	}
	if f := r.pending; f != nil {
		r.pending = nil
		return *f, nil
	}

	select {
	case f := <-r.q:
		if f.IsCloseNotify() {
			return frame.Frame{}, r.peerClosed()
		}
		return f, nil
	case <-r.done:
		return frame.Frame{}, channel.ErrClosed
	}
}

func (r *Reader) peerClosed() error {
	if r.lc.MarkPeerClosed() {
		r.logger.Info("queue writer closed channel", log.Transport("queue"))
	}
	return fmt.Errorf("%w: queue writer closed", channel.ErrEndOfStream)
}

// Close stops any blocked ReadMessage. Frames still queued are dropped with
// the reader.
func (r *Reader) Close() error {
	if !r.lc.BeginClose() {
		return nil
	}
	r.doneOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil
	r.logger.Debug("queue reader closed", log.Transport("queue"))
	return nil
}

var _ channel.Reader = (*Reader)(nil)
