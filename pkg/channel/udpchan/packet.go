package udpchan

import (
	"encoding/binary"
	"fmt"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// Packet layout offsets.
const (
	TypePos     = 0
	SequencePos = 4
	SizePos     = 8
	MessagePos  = 12
)

// Control packets carry frame.CloseNotifyType; the sequence selects the kind.
const (
	controlType = frame.CloseNotifyType

	seqClose    int32 = frame.CloseNotifySequence
	seqHello    int32 = -2
	seqHelloAck int32 = -3
)

type packet struct {
	typ     int32
	seq     int32
	payload []byte
}

func (p packet) control() bool {
	return p.typ == controlType
}

// encodePacket writes the packet into buf and returns its length. buf must
// hold MessagePos+len(payload) bytes.
func encodePacket(buf []byte, typ, seq int32, payload []byte) int {
	binary.BigEndian.PutUint32(buf[TypePos:], uint32(typ))
	binary.BigEndian.PutUint32(buf[SequencePos:], uint32(seq))
	binary.BigEndian.PutUint32(buf[SizePos:], uint32(len(payload)))
	return MessagePos + copy(buf[MessagePos:], payload)
}

// decodePacket parses one datagram. The payload aliases b.
func decodePacket(b []byte, maxMessageSize int) (packet, error) {
	if len(b) < MessagePos {
		return packet{}, fmt.Errorf("%w: datagram of %d bytes is shorter than the header",
			channel.ErrProtocolViolation, len(b))
	}
	size := int32(binary.BigEndian.Uint32(b[SizePos:]))
	if size < 0 || int(size) != len(b)-MessagePos {
		return packet{}, fmt.Errorf("%w: size field %d does not match datagram payload of %d bytes",
			channel.ErrProtocolViolation, size, len(b)-MessagePos)
	}
	if int(size) > maxMessageSize {
		return packet{}, fmt.Errorf("%w: payload of %d bytes exceeds max message size %d",
			channel.ErrProtocolViolation, size, maxMessageSize)
	}
	return packet{
		typ:     int32(binary.BigEndian.Uint32(b[TypePos:])),
		seq:     int32(binary.BigEndian.Uint32(b[SequencePos:])),
		payload: b[MessagePos:],
	}, nil
}
