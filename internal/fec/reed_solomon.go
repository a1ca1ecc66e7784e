package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// reedSolomonCodec is a systematic MDS code over GF(2^8): any k of the k+m
// blocks recover the k source blocks exactly.
type reedSolomonCodec struct {
	enc reedsolomon.Encoder
	k   int
	m   int
}

var _ BlockCodec = &reedSolomonCodec{}

func newReedSolomonCodec(k, m int) (*reedSolomonCodec, error) {
	if err := validateRate(k, m); err != nil {
		return nil, err
	}
	enc, err := reedsolomon.New(k, m)
	if err != nil {
		return nil, fmt.Errorf("fec: building Reed-Solomon encoder: %w", err)
	}
	return &reedSolomonCodec{enc: enc, k: k, m: m}, nil
}

func (c *reedSolomonCodec) Params() (int, int) { return c.k, c.m }

func (c *reedSolomonCodec) Encode(source [][]byte) ([][]byte, error) {
	if len(source) != c.k {
		return nil, fmt.Errorf("fec: expected %d source blocks, got %d: %w", c.k, len(source), ErrInsufficientBlocks)
	}
	blockSize := len(source[0])
	shards := make([][]byte, c.k+c.m)
	for i, s := range source {
		if len(s) != blockSize {
			return nil, ErrBlockSizeMismatch
		}
		shards[i] = s
	}
	for i := 0; i < c.m; i++ {
		shards[c.k+i] = make([]byte, blockSize)
	}
	if err := c.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("fec: encoding parity blocks: %w", err)
	}
	return shards[c.k:], nil
}

func (c *reedSolomonCodec) Decode(received []IndexedBlock) ([][]byte, error) {
	shards := make([][]byte, c.k+c.m)
	blockSize := -1
	present := 0
	for _, rb := range received {
		if int(rb.Index) >= c.k+c.m {
			return nil, fmt.Errorf("fec: block index %d out of range for (%d,%d)", rb.Index, c.k, c.m)
		}
		if shards[rb.Index] != nil {
			return nil, ErrDuplicateIndex
		}
		if blockSize == -1 {
			blockSize = len(rb.Block)
		} else if len(rb.Block) != blockSize {
			return nil, ErrBlockSizeMismatch
		}
		shards[rb.Index] = rb.Block
		present++
	}
	if present < c.k {
		return nil, ErrInsufficientBlocks
	}

	// the code is systematic: with all source rows present no matrix work is needed
	complete := true
	for i := 0; i < c.k; i++ {
		if shards[i] == nil {
			complete = false
			break
		}
	}
	if !complete {
		if err := c.enc.ReconstructData(shards); err != nil {
			return nil, fmt.Errorf("fec: reconstructing source blocks: %w", err)
		}
	}
	return shards[:c.k], nil
}
