package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

func TestFECFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *FECFrame
	}{
		{
			name: "source frame",
			frame: &FECFrame{
				Type:        FrameTypeSource,
				GroupID:     1,
				BlockIndex:  0,
				TotalBlocks: 6,
				Payload:     []byte{1, 2, 3, 4},
			},
		},
		{
			name: "repair frame",
			frame: &FECFrame{
				Type:        FrameTypeRepair,
				GroupID:     42,
				BlockIndex:  5,
				TotalBlocks: 6,
				Payload:     []byte{0xFF, 0x00, 0xFF},
			},
		},
		{
			name: "empty payload",
			frame: &FECFrame{
				Type:        FrameTypeSource,
				GroupID:     7,
				BlockIndex:  2,
				TotalBlocks: 3,
			},
		},
		{
			name: "nonzero reserved is preserved",
			frame: &FECFrame{
				Type:        FrameTypeSource,
				GroupID:     9,
				BlockIndex:  1,
				TotalBlocks: 6,
				Reserved:    ReservedWithSourceCount(4),
				Payload:     []byte{9},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.frame.Serialize()
			if got, want := len(data), FrameHeaderLen+len(tt.frame.Payload); got != want {
				t.Fatalf("serialized length = %d, want %d", got, want)
			}
			parsed, err := ParseFECFrame(data)
			if err != nil {
				t.Fatalf("ParseFECFrame() error = %v", err)
			}
			if !reflect.DeepEqual(parsed, tt.frame) {
				t.Errorf("round trip: got %+v, want %+v", parsed, tt.frame)
			}
		})
	}
}

func TestFECFrameWireLayout(t *testing.T) {
	frame := &FECFrame{
		Type:        FrameTypeRepair,
		GroupID:     0xDEADBEEF,
		BlockIndex:  7,
		TotalBlocks: 10,
		Payload:     bytes.Repeat([]byte{0xAA}, 1200),
	}
	data := frame.Serialize()
	if len(data) != 25+1200 {
		t.Fatalf("serialized length = %d, want %d", len(data), 25+1200)
	}
	if data[0] != 0xF1 {
		t.Errorf("frame type byte = %#x, want 0xF1", data[0])
	}
	parsed, err := ParseFECFrame(data)
	if err != nil {
		t.Fatalf("ParseFECFrame() error = %v", err)
	}
	if !reflect.DeepEqual(parsed, frame) {
		t.Errorf("round trip mismatch")
	}
}

func TestParseFECFrameErrors(t *testing.T) {
	valid := (&FECFrame{
		Type:        FrameTypeSource,
		GroupID:     1,
		TotalBlocks: 3,
		Payload:     []byte{1, 2, 3},
	}).Serialize()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrShortHeader},
		{name: "truncated header", data: valid[:24], want: ErrShortHeader},
		{name: "truncated payload", data: valid[:26], want: ErrShortPayload},
		{name: "unknown type", data: append([]byte{0x07}, valid[1:]...), want: ErrUnknownFrameType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFECFrame(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("ParseFECFrame() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFrameLength(t *testing.T) {
	frame := &FECFrame{Type: FrameTypeSource, TotalBlocks: 2, Payload: make([]byte, 100)}
	if got, want := frame.Length(), protocol.ByteCount(125); got != want {
		t.Errorf("Length() = %d, want %d", got, want)
	}
}

func TestSourceCountHint(t *testing.T) {
	if got := SourceCountFromReserved(ReservedWithSourceCount(8)); got != 8 {
		t.Errorf("SourceCountFromReserved = %d, want 8", got)
	}
	if got := SourceCountFromReserved(0); got != 0 {
		t.Errorf("SourceCountFromReserved(0) = %d, want 0", got)
	}
}
