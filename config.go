package mpfec

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/klingenchristopher/5G-FEC/internal/fec"
	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

// Config carries the per-connection settings. The zero value is usable:
// Validate fills in the defaults.
type Config struct {
	// DefaultK and DefaultM set the initial coding rate. The adaptive
	// controller replaces them on the first PeriodicUpdate whose decision
	// yields a different (k, m).
	DefaultK int
	DefaultM int
	// BlockSize is the coding block size in bytes.
	BlockSize int
	// Scheme selects the erasure code. Reed-Solomon is the default and the
	// only MDS option.
	Scheme protocol.FECSchemeID
	// Logger receives structured events. Defaults to a nop logger.
	Logger *zap.Logger
}

// Validate fills defaults and rejects invalid settings without mutating the
// receiver on error.
func (c Config) Validate() (Config, error) {
	if c.DefaultK == 0 && c.DefaultM == 0 {
		c.DefaultK = protocol.DefaultK
		c.DefaultM = protocol.DefaultM
	}
	if c.BlockSize == 0 {
		c.BlockSize = protocol.DefaultBlockSize
	}
	if c.Scheme == protocol.FECDisabled {
		c.Scheme = protocol.ReedSolomonFECScheme
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.DefaultK < 1 || c.DefaultM < 1 || c.DefaultK+c.DefaultM > protocol.MaxTotalBlocks {
		return Config{}, fmt.Errorf("mpfec: (k=%d, m=%d): %w", c.DefaultK, c.DefaultM, fec.ErrInvalidRate)
	}
	if c.BlockSize < 1 {
		return Config{}, fmt.Errorf("mpfec: block size %d: %w", c.BlockSize, fec.ErrBlockSizeMismatch)
	}
	return c, nil
}
