package ringchan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/msgchan/internal/backoff"
	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Writer is the producing end of a Ring.
type Writer struct {
	ring   *Ring
	opts   channel.Options
	logger log.Logger
	lc     channel.Lifecycle

	mu     sync.Mutex
	opened bool
	next   int64
	idler  *backoff.Idler
}

// NewWriter returns the writer for ring. A ring accepts one writer.
func NewWriter(ring *Ring, opts ...channel.Option) *Writer {
	o := channel.ApplyOptions(opts...)
	return &Writer{
		ring:   ring,
		opts:   o,
		logger: o.Logger,
		idler:  backoff.NewIdler(),
	}
}

// MaxMessageSize returns the payload limit.
func (w *Writer) MaxMessageSize() int { return w.ring.maxMessageSize }

// Open attaches the writer to the ring.
func (w *Writer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lc.State() != channel.StateUnopened {
		return w.lc.Open()
	}
	if !w.ring.writerAttached.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: ring already has a writer", channel.ErrConnection)
	}
	if err := w.lc.Open(); err != nil {
		w.ring.writerAttached.Store(false)
		return err
	}
	w.opened = true
	w.next = w.ring.cursor.Load() + 1

	w.logger.Debug("ring writer opened",
		log.Transport("ring"),
		log.Int("capacity", w.ring.Capacity()),
		log.Int("max_message_size", w.ring.maxMessageSize),
	)
	return nil
}

// Write claims the next slot, blocking while the ring is full, and publishes
// the frame into it.
func (w *Writer) Write(typ, seq int32, payload []byte) error {
	if err := channel.ValidateWrite(typ, payload, w.ring.maxMessageSize); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lc.Check(); err != nil {
		return err
	}

	w.idler.Reset()
	for !w.ring.free(w.next) {
		if w.ring.readerClosed.Load() {
			return w.peerClosed()
		}
		if err := w.lc.Check(); err != nil {
			return err
		}
		w.idler.Idle()
	}
	if w.ring.readerClosed.Load() {
		return w.peerClosed()
	}

	w.ring.publish(w.next, typ, seq, payload)
	w.next++
	return nil
}

func (w *Writer) peerClosed() error {
	if w.lc.MarkPeerClosed() {
		w.logger.Info("ring reader closed channel", log.Transport("ring"))
	}
	return fmt.Errorf("%w: ring reader closed", channel.ErrEndOfStream)
}

// Close publishes the close notification as the final slot, waiting up to
// the close timeout for room, and marks the writer side closed.
func (w *Writer) Close() error {
	if !w.lc.BeginClose() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened {
		return nil
	}
	defer w.ring.writerClosed.Store(true)

	if w.ring.readerClosed.Load() {
		w.logger.Debug("ring writer closed", log.Transport("ring"))
		return nil
	}

	deadline := time.Now().Add(w.opts.CloseTimeout)
	w.idler.Reset()
	for !w.ring.free(w.next) && !w.ring.readerClosed.Load() && time.Now().Before(deadline) {
		w.idler.Idle()
	}
	if w.ring.free(w.next) {
		w.ring.publish(w.next, frame.CloseNotifyType, frame.CloseNotifySequence, nil)
		w.next++
	} else if !w.ring.readerClosed.Load() {
		w.logger.Warn("ring full, close notification not delivered",
			log.Transport("ring"), log.Duration("close_timeout", w.opts.CloseTimeout))
	}

	w.logger.Debug("ring writer closed", log.Transport("ring"), log.Int64("published", w.next))
	return nil
}

var _ channel.Writer = (*Writer)(nil)
