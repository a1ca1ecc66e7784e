package fec

import (
	"errors"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

var (
	ErrInvalidRate        = errors.New("fec: invalid coding rate")
	ErrInsufficientBlocks = errors.New("fec: not enough blocks to decode")
	ErrDuplicateIndex     = errors.New("fec: duplicate block index")
	ErrBlockSizeMismatch  = errors.New("fec: block size mismatch")
)

// IndexedBlock is a received block together with its position in the group.
type IndexedBlock struct {
	Index protocol.BlockIndex
	Block []byte
}

// BlockCodec is a block erasure code over a fixed (k, m). Implementations are
// pure: they hold precomputed coding state but no per-call state.
type BlockCodec interface {
	// Encode produces the m repair blocks for k source blocks. All source
	// blocks must have identical length.
	Encode(source [][]byte) ([][]byte, error)
	// Decode recovers the k source blocks from any k distinct-index blocks
	// out of the k+m. If only source indices are present it is the identity.
	Decode(received []IndexedBlock) ([][]byte, error)
	// Params returns (k, m).
	Params() (int, int)
}

// NewCodec builds the codec for the given scheme and rate.
func NewCodec(scheme protocol.FECSchemeID, k, m int) (BlockCodec, error) {
	switch scheme {
	case protocol.XORFECScheme:
		return newXORCodec(k, m)
	case protocol.ReedSolomonFECScheme:
		return newReedSolomonCodec(k, m)
	default:
		return nil, errors.New("fec: unknown FEC scheme")
	}
}

func validateRate(k, m int) error {
	if k < 1 || m < 1 || k+m > protocol.MaxTotalBlocks {
		return ErrInvalidRate
	}
	return nil
}
