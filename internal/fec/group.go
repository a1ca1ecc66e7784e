package fec

import (
	"time"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

// GroupInfo is immutable once a group is created. A group's (k, m) is fixed at
// creation; rate changes only apply to subsequent groups.
type GroupInfo struct {
	GroupID   protocol.GroupID
	K         int
	M         int
	BlockSize int
	CreatedAt time.Time
}

// EncodingGroup is a sender-side group accumulating source blocks. Once sealed
// it carries exactly K source blocks (zero-padded if flushed early) and M
// repair blocks.
type EncodingGroup struct {
	Info         GroupInfo
	SourceBlocks [][]byte
	RepairBlocks [][]byte
	sealed       bool
}

func (g *EncodingGroup) Sealed() bool { return g.sealed }

// receivedGroup mirrors an encoding group on the receive side. Decode is
// attempted exactly once; after that, late frames for the group are dropped.
type receivedGroup struct {
	info      GroupInfo
	blocks    map[protocol.BlockIndex][]byte
	recovered bool
	// dead marks a group whose decode failed; it keeps absorbing (and
	// dropping) late frames without retrying.
	dead bool
}

func newReceivedGroup(info GroupInfo) *receivedGroup {
	return &receivedGroup{
		info:   info,
		blocks: make(map[protocol.BlockIndex][]byte),
	}
}
