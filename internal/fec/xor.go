package fec

// xorCodec is a single-parity scheme: the one repair block is the byte-wise XOR
// of all source blocks, so it recovers at most one missing source block. It is
// not MDS and is never selected by default; it exists for hosts that trade
// recovery strength for encoding cost via XORFECScheme.
type xorCodec struct {
	k int
}

var _ BlockCodec = &xorCodec{}

func newXORCodec(k, m int) (*xorCodec, error) {
	if err := validateRate(k, m); err != nil {
		return nil, err
	}
	if m != 1 {
		return nil, ErrInvalidRate
	}
	return &xorCodec{k: k}, nil
}

func (c *xorCodec) Params() (int, int) { return c.k, 1 }

func (c *xorCodec) Encode(source [][]byte) ([][]byte, error) {
	if len(source) != c.k {
		return nil, ErrInsufficientBlocks
	}
	blockSize := len(source[0])
	parity := make([]byte, blockSize)
	for _, s := range source {
		if len(s) != blockSize {
			return nil, ErrBlockSizeMismatch
		}
		for i, b := range s {
			parity[i] ^= b
		}
	}
	return [][]byte{parity}, nil
}

func (c *xorCodec) Decode(received []IndexedBlock) ([][]byte, error) {
	blocks := make([][]byte, c.k+1)
	blockSize := -1
	for _, rb := range received {
		if int(rb.Index) > c.k {
			return nil, ErrInsufficientBlocks
		}
		if blocks[rb.Index] != nil {
			return nil, ErrDuplicateIndex
		}
		if blockSize == -1 {
			blockSize = len(rb.Block)
		} else if len(rb.Block) != blockSize {
			return nil, ErrBlockSizeMismatch
		}
		blocks[rb.Index] = rb.Block
	}

	missing := -1
	for i := 0; i < c.k; i++ {
		if blocks[i] != nil {
			continue
		}
		if missing != -1 || blocks[c.k] == nil {
			// more than one source block gone, or no parity to fill the hole
			return nil, ErrInsufficientBlocks
		}
		missing = i
	}
	if missing == -1 {
		return blocks[:c.k], nil
	}

	recovered := make([]byte, blockSize)
	copy(recovered, blocks[c.k])
	for i := 0; i <= c.k; i++ {
		if i == missing || blocks[i] == nil || i == c.k {
			continue
		}
		for j, b := range blocks[i] {
			recovered[j] ^= b
		}
	}
	blocks[missing] = recovered
	return blocks[:c.k], nil
}
