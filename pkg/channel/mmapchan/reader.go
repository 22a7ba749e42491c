package mmapchan

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Reader polls a memory-mapped file for frames. It never blocks.
//
// HasNext may be called without external locking; all methods serialize on
// an internal mutex so that Close cannot unmap the file under a read.
type Reader struct {
	path           string
	maxMessageSize int
	logger         log.Logger
	lc             channel.Lifecycle

	mu           sync.Mutex
	region       *region
	lastConsumed Marker
	buf          []byte
}

// NewReader returns a reader for the channel file at path. The file is
// created on Open if it does not exist; see WaitForFile to wait for a writer
// to create it instead.
func NewReader(path string, maxMessageSize int, opts ...channel.Option) (*Reader, error) {
	if err := channel.ValidateMaxMessageSize(maxMessageSize); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Reader{
		path:           path,
		maxMessageSize: maxMessageSize,
		logger:         o.Logger,
		buf:            make([]byte, maxMessageSize),
	}, nil
}

// MaxMessageSize returns the payload limit.
func (r *Reader) MaxMessageSize() int { return r.maxMessageSize }

// Open maps the file.
func (r *Reader) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s := r.lc.State(); s != channel.StateUnopened {
		return r.lc.Open()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := openRegion(r.path, r.maxMessageSize)
	if err != nil {
		return err
	}
	if err := r.lc.Open(); err != nil {
		reg.close()
		return err
	}
	r.region = reg
	r.lastConsumed = MarkerInitial

	r.logger.Debug("mmap reader opened",
		log.Transport("mmap"),
		log.String("path", r.path),
		log.String("marker", reg.marker().String()),
	)
	return nil
}

// HasNext reports whether an unread frame is published. It returns false
// while the marker is INITIAL or WRITING, so a half-written frame or a writer
// that crashed mid-write both look like "no new frame".
func (r *Reader) HasNext() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return false, err
	}
	return r.ready(r.region.marker())
}

func (r *Reader) ready(m Marker) (bool, error) {
	if m == MarkerClosed {
		return false, r.peerClosed()
	}
	return m.Pending() && m != r.lastConsumed, nil
}

// ReadMessage copies the published frame into the reader's buffer and
// acknowledges it, which lets the writer publish the next one. The returned
// payload is valid until the next HasNext or ReadMessage call.
func (r *Reader) ReadMessage() (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return frame.Frame{}, err
	}

	reg := r.region
	word := reg.loadHead()
	m := markerOf(word)
	ok, err := r.ready(m)
	if err != nil {
		return frame.Frame{}, err
	}
	if !ok {
		return frame.Frame{}, channel.ErrNoMessage
	}

	typ := int32(binary.BigEndian.Uint32(reg.mem[TypePos:SequencePos]))
	seq := int32(binary.BigEndian.Uint32(reg.mem[SequencePos:SizePos]))
	size := int32(binary.BigEndian.Uint32(reg.mem[SizePos:HeaderSize]))
	if size < 0 || int(size) > r.maxMessageSize {
		r.logger.Error("mmap frame size out of range",
			log.Transport("mmap"), log.String("path", r.path), log.Int32("size", size))
		return frame.Frame{}, fmt.Errorf("%w: %s: frame size %d outside [0, %d]",
			channel.ErrProtocolViolation, r.path, size, r.maxMessageSize)
	}
	payload := r.buf[:size]
	copy(payload, reg.mem[HeaderSize:HeaderSize+int(size)])

	if reg.casHead(word, withMarker(word, m.Acknowledged())) {
		r.lastConsumed = m.Acknowledged()
	} else {
		// Only a closing writer may replace an unacknowledged marker, and it
		// leaves the fields alone, so the copy above is intact.
		if cur := reg.marker(); cur != MarkerClosed {
			r.logger.Error("mmap marker changed under an unacknowledged frame",
				log.Transport("mmap"), log.String("path", r.path), log.String("marker", cur.String()))
			return frame.Frame{}, fmt.Errorf("%w: %s: marker moved from %v to %v during read",
				channel.ErrProtocolViolation, r.path, m, cur)
		}
		r.lastConsumed = m
	}

	return frame.Frame{Type: typ, Sequence: seq, Payload: payload}, nil
}

func (r *Reader) peerClosed() error {
	if r.lc.MarkPeerClosed() {
		r.logger.Info("mmap writer closed channel", log.Transport("mmap"), log.String("path", r.path))
	}
	return fmt.Errorf("%w: writer closed %s", channel.ErrEndOfStream, r.path)
}

// Close publishes CLOSED, so a writer blocked on an unacknowledged frame
// stops with ErrEndOfStream, and unmaps the file.
func (r *Reader) Close() error {
	if !r.lc.BeginClose() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reg := r.region
	if reg == nil {
		return nil
	}
	r.region = nil
	reg.markClosed()

	r.logger.Debug("mmap reader closed", log.Transport("mmap"), log.String("path", r.path))
	return reg.close()
}

var _ channel.Reader = (*Reader)(nil)
