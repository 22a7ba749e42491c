package ringchan

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Reader is the consuming end of a Ring. It never blocks.
type Reader struct {
	ring   *Ring
	logger log.Logger
	lc     channel.Lifecycle

	mu     sync.Mutex
	opened bool
	next   int64
	held   bool
}

// NewReader returns the reader for ring. A ring accepts one reader.
func NewReader(ring *Ring, opts ...channel.Option) *Reader {
	o := channel.ApplyOptions(opts...)
	return &Reader{
		ring:   ring,
		logger: o.Logger,
	}
}

// MaxMessageSize returns the payload limit.
func (r *Reader) MaxMessageSize() int { return r.ring.maxMessageSize }

// Open attaches the reader to the ring.
func (r *Reader) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lc.State() != channel.StateUnopened {
		return r.lc.Open()
	}
	if !r.ring.readerAttached.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: ring already has a reader", channel.ErrConnection)
	}
	if err := r.lc.Open(); err != nil {
		r.ring.readerAttached.Store(false)
		return err
	}
	r.opened = true
	r.next = r.ring.gating.Load() + 1

	r.logger.Debug("ring reader opened", log.Transport("ring"), log.Int("capacity", r.ring.Capacity()))
	return nil
}

// release returns the slot handed out by the previous ReadMessage.
func (r *Reader) release() {
	if r.held {
		r.ring.release(r.next - 1)
		r.held = false
	}
}

// HasNext releases the previously returned slot and reports whether another
// frame is published.
func (r *Reader) HasNext() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return false, err
	}
	r.release()

	ok, err := r.ready()
	if err != nil || !ok {
		return false, err
	}
	if r.ring.view(r.next).IsCloseNotify() {
		return false, r.consumeClose()
	}
	return true, nil
}

// ready reports whether the slot at r.next is published. The writer's closed
// flag is loaded before the cursor, so a frame published ahead of the flag is
// never missed.
func (r *Reader) ready() (bool, error) {
	closed := r.ring.writerClosed.Load()
	if r.ring.published(r.next) {
		return true, nil
	}
	if closed {
		return false, r.peerClosed()
	}
	return false, nil
}

// ReadMessage returns the next published frame. The payload aliases the
// ring slot until the next HasNext or ReadMessage call.
func (r *Reader) ReadMessage() (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return frame.Frame{}, err
	}
	r.release()

	ok, err := r.ready()
	if err != nil {
		return frame.Frame{}, err
	}
	if !ok {
		return frame.Frame{}, channel.ErrNoMessage
	}

	f := r.ring.view(r.next)
	if f.IsCloseNotify() {
		return frame.Frame{}, r.consumeClose()
	}
	r.next++
	r.held = true
	return f, nil
}

func (r *Reader) consumeClose() error {
	r.ring.release(r.next)
	r.next++
	return r.peerClosed()
}

func (r *Reader) peerClosed() error {
	if r.lc.MarkPeerClosed() {
		r.logger.Info("ring writer closed channel", log.Transport("ring"))
	}
	return fmt.Errorf("%w: ring writer closed", channel.ErrEndOfStream)
}

// Close releases any held slot and marks the reader side closed, which
// unblocks a writer waiting for room.
func (r *Reader) Close() error {
	if !r.lc.BeginClose() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return nil
	}
	r.release()
	r.ring.readerClosed.Store(true)

	r.logger.Debug("ring reader closed", log.Transport("ring"))
	return nil
}

var _ channel.Reader = (*Reader)(nil)
