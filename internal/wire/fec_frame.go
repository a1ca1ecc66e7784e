package wire

import (
	"encoding/binary"
	"errors"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

type FrameType byte

const (
	FrameTypeSource FrameType = 0xF0
	FrameTypeRepair FrameType = 0xF1
)

// FrameHeaderLen is the fixed header size preceding every FEC frame payload.
const FrameHeaderLen = 25

var (
	ErrShortHeader      = errors.New("wire: buffer shorter than FEC frame header")
	ErrShortPayload     = errors.New("wire: buffer shorter than declared payload length")
	ErrUnknownFrameType = errors.New("wire: unknown FEC frame type")
)

// FECFrame is one source or repair block on the wire. All header integers are
// big-endian. One frame maps to exactly one transport payload; frames are never
// fragmented.
//
// Layout:
//
//	[0]     frame type (0xF0 source, 0xF1 repair)
//	[1:9]   group id
//	[9:13]  block index
//	[13:17] total blocks (k+m)
//	[17:21] payload length
//	[21:25] reserved
//	[25:]   payload
type FECFrame struct {
	Type        FrameType
	GroupID     protocol.GroupID
	BlockIndex  protocol.BlockIndex
	TotalBlocks uint32
	// Reserved is carried through unmodified. Nonzero values are accepted.
	Reserved uint32
	Payload  []byte
}

func (f *FECFrame) IsRepair() bool {
	return f.Type == FrameTypeRepair
}

// Append serializes the frame onto b.
func (f *FECFrame) Append(b []byte) []byte {
	b = append(b, byte(f.Type))
	b = binary.BigEndian.AppendUint64(b, uint64(f.GroupID))
	b = binary.BigEndian.AppendUint32(b, uint32(f.BlockIndex))
	b = binary.BigEndian.AppendUint32(b, f.TotalBlocks)
	b = binary.BigEndian.AppendUint32(b, uint32(len(f.Payload)))
	b = binary.BigEndian.AppendUint32(b, f.Reserved)
	b = append(b, f.Payload...)
	return b
}

// Serialize returns the frame as a freshly allocated byte slice.
func (f *FECFrame) Serialize() []byte {
	return f.Append(make([]byte, 0, FrameHeaderLen+len(f.Payload)))
}

// Length is the serialized size of the frame.
func (f *FECFrame) Length() protocol.ByteCount {
	return protocol.ByteCount(FrameHeaderLen + len(f.Payload))
}

// ReservedWithSourceCount packs a group's source-block count into the low
// byte of the reserved field. Receivers that predate the hint ignore it.
func ReservedWithSourceCount(k int) uint32 {
	return uint32(k) & 0xFF
}

// SourceCountFromReserved extracts the source-block count hint; 0 means the
// sender did not set one.
func SourceCountFromReserved(reserved uint32) int {
	return int(reserved & 0xFF)
}

// ParseFECFrame parses a single frame from data. The payload slice is copied so
// the caller may reuse data.
func ParseFECFrame(data []byte) (*FECFrame, error) {
	if len(data) < FrameHeaderLen {
		return nil, ErrShortHeader
	}
	typ := FrameType(data[0])
	if typ != FrameTypeSource && typ != FrameTypeRepair {
		return nil, ErrUnknownFrameType
	}
	payloadLen := binary.BigEndian.Uint32(data[17:21])
	if uint64(len(data)) < uint64(FrameHeaderLen)+uint64(payloadLen) {
		return nil, ErrShortPayload
	}
	f := &FECFrame{
		Type:        typ,
		GroupID:     protocol.GroupID(binary.BigEndian.Uint64(data[1:9])),
		BlockIndex:  protocol.BlockIndex(binary.BigEndian.Uint32(data[9:13])),
		TotalBlocks: binary.BigEndian.Uint32(data[13:17]),
		Reserved:    binary.BigEndian.Uint32(data[21:25]),
	}
	if payloadLen != 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, data[FrameHeaderLen:FrameHeaderLen+payloadLen])
	}
	return f, nil
}
