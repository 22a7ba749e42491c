package frame

// Mutable is a reusable frame. Set and CopyFrom overwrite it in place and only
// allocate when the payload outgrows the current buffer.
type Mutable struct {
	typ int32
	seq int32
	buf []byte
}

// NewMutable returns a Mutable with room for capacity payload bytes.
func NewMutable(capacity int) *Mutable {
	if capacity < 0 {
		capacity = 0
	}
	return &Mutable{buf: make([]byte, 0, capacity)}
}

// Set overwrites type, sequence and payload.
func (m *Mutable) Set(typ, seq int32, payload []byte) {
	m.typ = typ
	m.seq = seq
	m.buf = append(m.buf[:0], payload...)
}

// CopyFrom overwrites m with the contents of f. Use it to retain a buffer-view
// frame without allocating a new payload per read.
func (m *Mutable) CopyFrom(f Frame) {
	m.Set(f.Type, f.Sequence, f.Payload)
}

// Reset clears the frame while keeping its buffer.
func (m *Mutable) Reset() {
	m.typ = 0
	m.seq = 0
	m.buf = m.buf[:0]
}

// Type returns the frame type.
func (m *Mutable) Type() int32 { return m.typ }

// Sequence returns the frame sequence.
func (m *Mutable) Sequence() int32 { return m.seq }

// Payload returns the payload. The slice is overwritten by the next Set.
func (m *Mutable) Payload() []byte { return m.buf }

// View returns a Frame aliasing m's buffer; it is valid until m is next modified.
func (m *Mutable) View() Frame {
	return Frame{Type: m.typ, Sequence: m.seq, Payload: m.buf}
}

// Frame returns an owned copy of m.
func (m *Mutable) Frame() Frame {
	return New(m.typ, m.seq, m.buf)
}
