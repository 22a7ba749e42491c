package mmapchan

import (
	"encoding/binary"
	"fmt"
)

// Region layout. Integers are big-endian.
//
//	[ marker:1 ][ type:4 ][ sequence:4 ][ size:4 ][ payload:maxMessageSize ]
const (
	MarkerPos   = 0
	TypePos     = 1
	SequencePos = 5
	SizePos     = 9
	HeaderSize  = 13
)

// RegionSize returns the file size for a channel with the given payload limit.
func RegionSize(maxMessageSize int) int {
	return HeaderSize + maxMessageSize
}

// Marker is the transaction marker stored in the first byte of the region.
// It is the only synchronization between writer and reader.
type Marker byte

const (
	// MarkerInitial is a fresh region with no frame yet.
	MarkerInitial Marker = 0
	// MarkerWriting means the frame fields are being rewritten and must not be read.
	MarkerWriting Marker = 1
	// MarkerCommittedEven and MarkerCommittedOdd alternate on every publish.
	MarkerCommittedEven Marker = 2
	MarkerCommittedOdd  Marker = 3
	// MarkerClosed is the close notification; either side may set it.
	MarkerClosed Marker = 4

	// consumedBit is set on a committed value by the reader once it has copied the frame.
	consumedBit Marker = 0x80
)

// Pending reports whether m publishes a frame the reader has not acknowledged.
func (m Marker) Pending() bool {
	return m == MarkerCommittedEven || m == MarkerCommittedOdd
}

// Consumed reports whether m is an acknowledged committed value.
func (m Marker) Consumed() bool {
	return m&consumedBit != 0 && (m &^ consumedBit).Pending()
}

// Acknowledged returns the consumed form of a committed marker.
func (m Marker) Acknowledged() Marker {
	return m | consumedBit
}

// toggle returns the committed value following m.
func toggle(m Marker) Marker {
	if m&^consumedBit == MarkerCommittedEven {
		return MarkerCommittedOdd
	}
	return MarkerCommittedEven
}

func (m Marker) String() string {
	switch {
	case m == MarkerInitial:
		return "INITIAL"
	case m == MarkerWriting:
		return "WRITING"
	case m == MarkerCommittedEven:
		return "COMMITTED_EVEN"
	case m == MarkerCommittedOdd:
		return "COMMITTED_ODD"
	case m == MarkerClosed:
		return "CLOSED"
	case m.Consumed():
		return (m &^ consumedBit).String() + "+ACK"
	default:
		return fmt.Sprintf("Marker(%#x)", byte(m))
	}
}

// The marker shares the region's first aligned 32-bit word with the three
// leading bytes of the type field. Marker loads and stores go through atomic
// operations on that word, which gives the happens-before edge between the
// field stores and publication, within a process and across processes
// mapping the same file. The word is read in native byte order so that
// byte 0 of the region is byte 0 of the word on every platform.

func markerOf(word uint32) Marker {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], word)
	return Marker(b[0])
}

func withMarker(word uint32, m Marker) uint32 {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], word)
	b[0] = byte(m)
	return binary.NativeEndian.Uint32(b[:])
}

// headWord builds the first word from a marker and the first three bytes of
// the encoded type.
func headWord(m Marker, typ [4]byte) uint32 {
	return binary.NativeEndian.Uint32([]byte{byte(m), typ[0], typ[1], typ[2]})
}
