package mmapchan

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/bft-labs/msgchan/internal/backoff"
	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Writer publishes frames into a memory-mapped file. Only one Writer may be
// open on a file at a time.
type Writer struct {
	path           string
	maxMessageSize int
	opts           channel.Options
	logger         log.Logger
	lc             channel.Lifecycle

	// mu keeps Close from unmapping the region under an in-flight Write.
	mu     sync.Mutex
	region *region
	last   Marker
	idler  *backoff.Idler
}

// NewWriter returns a writer for the channel file at path. The file is
// created on Open if it does not exist.
func NewWriter(path string, maxMessageSize int, opts ...channel.Option) (*Writer, error) {
	if err := channel.ValidateMaxMessageSize(maxMessageSize); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Writer{
		path:           path,
		maxMessageSize: maxMessageSize,
		opts:           o,
		logger:         o.Logger,
		idler:          backoff.NewIdler(),
	}, nil
}

// MaxMessageSize returns the payload limit.
func (w *Writer) MaxMessageSize() int { return w.maxMessageSize }

// Open maps the file and resets the marker to INITIAL, discarding whatever a
// previous writer left behind, including a WRITING marker from a crash.
func (w *Writer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s := w.lc.State(); s != channel.StateUnopened {
		return w.lc.Open()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r, err := openRegion(w.path, w.maxMessageSize)
	if err != nil {
		return err
	}
	if err := w.lc.Open(); err != nil {
		r.close()
		return err
	}

	for {
		word := r.loadHead()
		if r.casHead(word, withMarker(word, MarkerInitial)) {
			break
		}
	}
	w.region = r
	w.last = MarkerCommittedOdd

	w.logger.Debug("mmap writer opened",
		log.Transport("mmap"),
		log.String("path", w.path),
		log.Int("max_message_size", w.maxMessageSize),
	)
	return nil
}

// Write publishes one frame. It blocks while the reader has not yet
// acknowledged the previous frame.
func (w *Writer) Write(typ, seq int32, payload []byte) error {
	if err := channel.ValidateWrite(typ, payload, w.maxMessageSize); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lc.Check(); err != nil {
		return err
	}

	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(typ))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(seq))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))
	next := toggle(w.last)
	r := w.region

	var writing uint32
	for {
		word, err := w.awaitSlot()
		if err != nil {
			return err
		}
		writing = withMarker(word, MarkerWriting)
		if r.casHead(word, writing) {
			break
		}
	}

	// The type's first three bytes live in the head word and go in atomically;
	// everything after it is plain memory ordered by the commit below.
	withType := headWord(MarkerWriting, [4]byte{hdr[0], hdr[1], hdr[2], hdr[3]})
	if !r.casHead(writing, withType) {
		return w.peerClosed()
	}
	copy(r.mem[TypePos+3:HeaderSize], hdr[3:])
	copy(r.mem[HeaderSize:], payload)

	if !r.casHead(withType, withMarker(withType, next)) {
		return w.peerClosed()
	}
	w.last = next
	return nil
}

// awaitSlot waits until the region may be overwritten and returns the head
// word observed at that point.
func (w *Writer) awaitSlot() (uint32, error) {
	w.idler.Reset()
	for {
		if err := w.lc.Check(); err != nil {
			return 0, err
		}
		word := w.region.loadHead()
		m := markerOf(word)
		switch {
		case m == MarkerInitial, m == w.last.Acknowledged():
			return word, nil
		case m == w.last:
			w.idler.Idle()
		case m == MarkerClosed:
			return 0, w.peerClosed()
		case m == MarkerWriting:
			w.logger.Error("mmap marker is WRITING at start of write; another writer is active",
				log.Transport("mmap"), log.String("path", w.path))
			return 0, fmt.Errorf("%w: %s: marker %v at start of write, only one writer per file is supported",
				channel.ErrProtocolViolation, w.path, m)
		default:
			w.logger.Error("mmap marker in unexpected state",
				log.Transport("mmap"), log.String("path", w.path), log.String("marker", m.String()))
			return 0, fmt.Errorf("%w: %s: marker %v, last published %v",
				channel.ErrProtocolViolation, w.path, m, w.last)
		}
	}
}

func (w *Writer) peerClosed() error {
	if w.lc.MarkPeerClosed() {
		w.logger.Info("mmap reader closed channel", log.Transport("mmap"), log.String("path", w.path))
	}
	return fmt.Errorf("%w: reader closed %s", channel.ErrEndOfStream, w.path)
}

// Close waits up to the close timeout for the last frame to be acknowledged,
// publishes the CLOSED marker, removes the file and unmaps it.
func (w *Writer) Close() error {
	if !w.lc.BeginClose() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.region
	if r == nil {
		return nil
	}
	w.region = nil

	deadline := time.Now().Add(w.opts.CloseTimeout)
	w.idler.Reset()
	for r.marker() == w.last && time.Now().Before(deadline) {
		w.idler.Idle()
	}
	acked := r.marker() != w.last
	if !acked {
		w.logger.Warn("closing mmap channel with an unacknowledged frame",
			log.Transport("mmap"), log.String("path", w.path), log.Duration("close_timeout", w.opts.CloseTimeout))
	}
	r.markClosed()

	// Mappings outlive the unlink, so an open reader still sees CLOSED while
	// a reader of the next session waits for a fresh file.
	if err := os.Remove(w.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("mmap channel file not removed",
			log.Transport("mmap"), log.String("path", w.path), log.Err(err))
	}

	w.logger.Debug("mmap writer closed",
		log.Transport("mmap"), log.String("path", w.path), log.Bool("acknowledged", acked))
	return r.close()
}

var _ channel.Writer = (*Writer)(nil)
