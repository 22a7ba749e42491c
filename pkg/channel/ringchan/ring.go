package ringchan

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// cacheLine pads the hot sequences apart so the writer's cursor and the
// reader's gating sequence do not share a cache line.
const cacheLine = 64

type slot struct {
	typ  int32
	seq  int32
	size int
	buf  []byte
}

// Ring is the shared state between one ringchan Writer and one Reader.
type Ring struct {
	mask           int64
	slots          []slot
	maxMessageSize int

	_      [cacheLine]byte
	cursor atomic.Int64 // last published sequence
	_      [cacheLine - 8]byte
	gating atomic.Int64 // last sequence released by the reader
	_      [cacheLine - 8]byte

	writerClosed atomic.Bool
	readerClosed atomic.Bool

	writerAttached atomic.Bool
	readerAttached atomic.Bool
}

// NewRing preallocates capacity slots of maxMessageSize bytes each. capacity
// must be a power of two.
func NewRing(capacity, maxMessageSize int) (*Ring, error) {
	if capacity <= 0 || bits.OnesCount(uint(capacity)) != 1 {
		return nil, fmt.Errorf("%w: ring capacity %d is not a positive power of two", channel.ErrInvalidArgument, capacity)
	}
	if err := channel.ValidateMaxMessageSize(maxMessageSize); err != nil {
		return nil, err
	}

	r := &Ring{
		mask:           int64(capacity - 1),
		slots:          make([]slot, capacity),
		maxMessageSize: maxMessageSize,
	}
	for i := range r.slots {
		r.slots[i].buf = make([]byte, maxMessageSize)
	}
	r.cursor.Store(-1)
	r.gating.Store(-1)
	return r, nil
}

// Capacity returns the number of slots.
func (r *Ring) Capacity() int { return len(r.slots) }

// MaxMessageSize returns the payload limit of every slot.
func (r *Ring) MaxMessageSize() int { return r.maxMessageSize }

// Len returns the number of published frames the reader has not released.
func (r *Ring) Len() int {
	return int(r.cursor.Load() - r.gating.Load())
}

func (r *Ring) slotAt(seq int64) *slot {
	return &r.slots[seq&r.mask]
}

// free reports whether the slot for seq no longer holds an unreleased frame.
func (r *Ring) free(seq int64) bool {
	return r.gating.Load() >= seq-int64(len(r.slots))
}

// publish fills the slot for seq and makes it visible to the reader.
func (r *Ring) publish(seq int64, typ, fseq int32, payload []byte) {
	s := r.slotAt(seq)
	s.typ = typ
	s.seq = fseq
	s.size = copy(s.buf, payload)
	r.cursor.Store(seq)
}

// published reports whether seq has been published.
func (r *Ring) published(seq int64) bool {
	return r.cursor.Load() >= seq
}

func (r *Ring) view(seq int64) frame.Frame {
	s := r.slotAt(seq)
	return frame.Frame{Type: s.typ, Sequence: s.seq, Payload: s.buf[:s.size]}
}

// release hands every slot up to and including seq back to the writer.
func (r *Ring) release(seq int64) {
	r.gating.Store(seq)
}
