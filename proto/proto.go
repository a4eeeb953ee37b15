// Package proto implements the fixed-size binary protocol spoken between
// the referee and its agents. Every message occupies exactly Size bytes on
// the wire: a big-endian u32 kind tag followed by the kind's payload fields
// in declaration order, zero-padded to the full frame.
package proto

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Size is the length of every wire frame, in bytes.
const Size = 32

// Kind tags a message with its payload layout.
type Kind uint32

// Message kinds.
const (
	KindStart Kind = iota
	KindMove
	KindSwap
	KindEnd
)

// String returns the message kind name.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "START"
	case KindMove:
		return "MOVE"
	case KindSwap:
		return "SWAP"
	case KindEnd:
		return "END"
	}
	return "UNKNOWN KIND"
}

// Start carries the game parameters announced to each agent.
type Start struct {
	Player      uint32
	BoardSize   uint32
	GameSecs    uint32
	ThreadLimit uint32
	MemLimitMiB uint32
}

// Move carries a board coordinate.
type Move struct {
	X uint32
	Y uint32
}

// End carries the winning player.
type End struct {
	Winner uint32
}

// Msg is a protocol message. Only the payload selected by Kind is
// meaningful; the other arms are ignored on encode and zeroed on decode.
type Msg struct {
	Kind  Kind
	Start Start
	Move  Move
	End   End
}

// MarshalBinary encodes m into a Size-byte frame. Bytes past the payload
// are zeroed so that no stale memory leaks onto the wire.
func (m *Msg) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint32(buf[0:], uint32(m.Kind))

	switch m.Kind {
	case KindStart:
		binary.BigEndian.PutUint32(buf[4:], m.Start.Player)
		binary.BigEndian.PutUint32(buf[8:], m.Start.BoardSize)
		binary.BigEndian.PutUint32(buf[12:], m.Start.GameSecs)
		binary.BigEndian.PutUint32(buf[16:], m.Start.ThreadLimit)
		binary.BigEndian.PutUint32(buf[20:], m.Start.MemLimitMiB)

	case KindMove:
		binary.BigEndian.PutUint32(buf[4:], m.Move.X)
		binary.BigEndian.PutUint32(buf[8:], m.Move.Y)

	case KindSwap:
		// no payload

	case KindEnd:
		binary.BigEndian.PutUint32(buf[4:], m.End.Winner)

	default:
		return nil, errors.Errorf("proto: cannot marshal unknown message kind %d", uint32(m.Kind))
	}

	return buf, nil
}

// UnmarshalBinary decodes a Size-byte frame into m. The frame must be
// exactly Size bytes and carry a recognised kind tag.
func (m *Msg) UnmarshalBinary(buf []byte) error {
	if len(buf) != Size {
		return errors.Errorf("proto: frame must be %d bytes, got %d", Size, len(buf))
	}

	msg := Msg{Kind: Kind(binary.BigEndian.Uint32(buf[0:]))}

	switch msg.Kind {
	case KindStart:
		msg.Start.Player = binary.BigEndian.Uint32(buf[4:])
		msg.Start.BoardSize = binary.BigEndian.Uint32(buf[8:])
		msg.Start.GameSecs = binary.BigEndian.Uint32(buf[12:])
		msg.Start.ThreadLimit = binary.BigEndian.Uint32(buf[16:])
		msg.Start.MemLimitMiB = binary.BigEndian.Uint32(buf[20:])

	case KindMove:
		msg.Move.X = binary.BigEndian.Uint32(buf[4:])
		msg.Move.Y = binary.BigEndian.Uint32(buf[8:])

	case KindSwap:
		// no payload

	case KindEnd:
		msg.End.Winner = binary.BigEndian.Uint32(buf[4:])

	default:
		return errors.Errorf("proto: unknown message kind %d", uint32(msg.Kind))
	}

	*m = msg
	return nil
}
