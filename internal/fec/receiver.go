package fec

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
	"github.com/klingenchristopher/5G-FEC/internal/wire"
)

// Receiver mirrors the sender's groups. Frames are slotted by block index,
// duplicates silently dropped, and a group is decoded exactly once as soon as
// any k distinct indices are present.
type Receiver struct {
	mutex sync.Mutex

	scheme protocol.FECSchemeID
	groups *lru.Cache[protocol.GroupID, *receivedGroup]
	// decoder cache, keyed by rate; groups of equal (k, m) share a codec
	decoders map[[2]int]BlockCodec

	recoveredGroups  uint64
	recoveredPackets uint64
	droppedFrames    uint64

	logger *zap.Logger
}

func NewReceiver(scheme protocol.FECSchemeID, logger *zap.Logger) (*Receiver, error) {
	groups, err := lru.New[protocol.GroupID, *receivedGroup](protocol.MaxReceivedGroups)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Receiver{
		scheme:   scheme,
		groups:   groups,
		decoders: make(map[[2]int]BlockCodec),
		logger:   logger,
	}, nil
}

// OnFrame inserts a frame into its group and returns the k recovered source
// blocks on the first successful decode, nil otherwise. Malformed frames and
// decode failures are absorbed here; they never propagate to the transport.
func (r *Receiver) OnFrame(f *wire.FECFrame) [][]byte {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	k, m, err := splitTotalBlocks(f)
	if err != nil {
		r.droppedFrames++
		r.logger.Warn("dropping FEC frame", zap.Error(err))
		return nil
	}

	g, ok := r.groups.Get(f.GroupID)
	if !ok {
		g = newReceivedGroup(GroupInfo{
			GroupID:   f.GroupID,
			K:         k,
			M:         m,
			BlockSize: len(f.Payload),
			CreatedAt: time.Now(),
		})
		r.groups.Add(f.GroupID, g)
	}
	if g.recovered || g.dead {
		// late frame for a finished group
		return nil
	}
	if _, dup := g.blocks[f.BlockIndex]; dup {
		return nil
	}
	g.blocks[f.BlockIndex] = f.Payload

	if len(g.blocks) < g.info.K {
		return nil
	}
	return r.decodeLocked(g)
}

func (r *Receiver) decodeLocked(g *receivedGroup) [][]byte {
	codec, err := r.codecFor(g.info.K, g.info.M)
	if err != nil {
		g.dead = true
		r.logger.Warn("abandoning group", zap.Uint64("group_id", uint64(g.info.GroupID)), zap.Error(err))
		return nil
	}
	received := make([]IndexedBlock, 0, len(g.blocks))
	missing := g.info.K
	for idx, block := range g.blocks {
		received = append(received, IndexedBlock{Index: idx, Block: block})
		if int(idx) < g.info.K {
			missing--
		}
	}
	source, err := codec.Decode(received)
	if err != nil {
		g.dead = true
		r.logger.Warn("abandoning group", zap.Uint64("group_id", uint64(g.info.GroupID)), zap.Error(err))
		return nil
	}
	g.recovered = true
	g.blocks = nil
	r.recoveredGroups++
	r.recoveredPackets += uint64(missing)
	return source
}

func (r *Receiver) codecFor(k, m int) (BlockCodec, error) {
	key := [2]int{k, m}
	if c, ok := r.decoders[key]; ok {
		return c, nil
	}
	c, err := NewCodec(r.scheme, k, m)
	if err != nil {
		return nil, err
	}
	r.decoders[key] = c
	return c, nil
}

// Cleanup drops groups with id < before.
func (r *Receiver) Cleanup(before protocol.GroupID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, id := range r.groups.Keys() {
		if id < before {
			r.groups.Remove(id)
		}
	}
}

// RecoveredGroups returns how many groups decoded successfully.
func (r *Receiver) RecoveredGroups() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.recoveredGroups
}

// RecoveredPackets returns how many source blocks were reconstructed rather
// than received directly.
func (r *Receiver) RecoveredPackets() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.recoveredPackets
}

// DroppedFrames returns how many frames were rejected as malformed.
func (r *Receiver) DroppedFrames() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.droppedFrames
}

// splitTotalBlocks derives (k, m) for a group from the frame that opened it.
// Our sender mirrors k into the low byte of the reserved field (see
// wire.SourceCountFromReserved); when that byte is zero the frame came from a
// sender that predates the hint, and the split falls back to the 2:1 ratio of
// the default rate.
func splitTotalBlocks(f *wire.FECFrame) (int, int, error) {
	total := int(f.TotalBlocks)
	if total < 2 || total > protocol.MaxTotalBlocks {
		return 0, 0, fmt.Errorf("fec: total blocks %d out of range: %w", total, ErrInvalidRate)
	}
	if int(f.BlockIndex) >= total {
		return 0, 0, fmt.Errorf("fec: block index %d outside group of %d: %w", f.BlockIndex, total, ErrInvalidRate)
	}
	k := wire.SourceCountFromReserved(f.Reserved)
	if k == 0 {
		k = (total * 2) / 3
	}
	if k < 1 || k >= total {
		return 0, 0, fmt.Errorf("fec: source count %d inconsistent with %d total blocks: %w", k, total, ErrInvalidRate)
	}
	return k, total - k, nil
}
