package fec

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

// GroupManager owns the sender-side encoding groups. Exactly one non-sealed
// "current" group exists at any time; AddSource seals it on the k-th block,
// Flush and UpdateRate seal it early with zero padding.
type GroupManager struct {
	mutex sync.Mutex

	scheme    protocol.FECSchemeID
	k         int
	m         int
	blockSize int
	codec     BlockCodec

	current     *EncodingGroup
	sealed      map[protocol.GroupID]*EncodingGroup
	nextGroupID protocol.GroupID

	// cumulative encode timing, read by the controller for statistics
	encodeCalls   uint64
	encodeTotalUS uint64

	logger *zap.Logger
}

func NewGroupManager(scheme protocol.FECSchemeID, k, m, blockSize int, logger *zap.Logger) (*GroupManager, error) {
	if err := validateRate(k, m); err != nil {
		return nil, err
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("fec: block size %d: %w", blockSize, ErrBlockSizeMismatch)
	}
	codec, err := NewCodec(scheme, k, m)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m2 := &GroupManager{
		scheme:      scheme,
		k:           k,
		m:           m,
		blockSize:   blockSize,
		codec:       codec,
		sealed:      make(map[protocol.GroupID]*EncodingGroup),
		nextGroupID: 1,
		logger:      logger,
	}
	m2.current = m2.newGroup()
	return m2, nil
}

func (m *GroupManager) newGroup() *EncodingGroup {
	g := &EncodingGroup{
		Info: GroupInfo{
			GroupID:   m.nextGroupID,
			K:         m.k,
			M:         m.m,
			BlockSize: m.blockSize,
			CreatedAt: time.Now(),
		},
		SourceBlocks: make([][]byte, 0, m.k),
	}
	m.nextGroupID++
	return g
}

// Params returns the rate applied to future groups.
func (m *GroupManager) Params() (int, int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.k, m.m
}

// AddSource appends one block to the current group. The block must be exactly
// blockSize long; SendStreamData pads the trailing block before calling.
// Returns the sealed group's id when the block completed a group, 0 otherwise.
func (m *GroupManager) AddSource(block []byte) (protocol.GroupID, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(block) != m.blockSize {
		return 0, ErrBlockSizeMismatch
	}
	m.current.SourceBlocks = append(m.current.SourceBlocks, block)
	if len(m.current.SourceBlocks) < m.current.Info.K {
		return 0, nil
	}
	id := m.current.Info.GroupID
	if err := m.sealCurrentLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// Flush seals the current group, zero-padding it up to k source blocks, and
// returns the ids sealed. An empty current group is a no-op.
func (m *GroupManager) Flush() ([]protocol.GroupID, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.flushLocked()
}

func (m *GroupManager) flushLocked() ([]protocol.GroupID, error) {
	if len(m.current.SourceBlocks) == 0 {
		return nil, nil
	}
	id := m.current.Info.GroupID
	for len(m.current.SourceBlocks) < m.current.Info.K {
		m.current.SourceBlocks = append(m.current.SourceBlocks, make([]byte, m.blockSize))
	}
	if err := m.sealCurrentLocked(); err != nil {
		return nil, err
	}
	return []protocol.GroupID{id}, nil
}

// FlushStale seals the current group if it has been accumulating for longer
// than maxAge without filling.
func (m *GroupManager) FlushStale(maxAge time.Duration) ([]protocol.GroupID, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.current.SourceBlocks) == 0 || time.Since(m.current.Info.CreatedAt) < maxAge {
		return nil, nil
	}
	m.logger.Debug("flushing stale group",
		zap.Uint64("group_id", uint64(m.current.Info.GroupID)),
		zap.Int("blocks", len(m.current.SourceBlocks)))
	return m.flushLocked()
}

func (m *GroupManager) sealCurrentLocked() error {
	g := m.current
	start := time.Now()
	repair, err := m.codec.Encode(g.SourceBlocks)
	if err != nil {
		// the group is dropped rather than retained half-sealed
		m.current = m.newGroup()
		m.logger.Warn("group encode failed", zap.Uint64("group_id", uint64(g.Info.GroupID)), zap.Error(err))
		return err
	}
	m.encodeCalls++
	m.encodeTotalUS += uint64(time.Since(start).Microseconds())
	g.RepairBlocks = repair
	g.sealed = true
	m.sealed[g.Info.GroupID] = g
	m.current = m.newGroup()
	return nil
}

// UpdateRate sets (k, m) for future groups. The current group is flushed first
// so a rate change never modifies a group retroactively.
func (m *GroupManager) UpdateRate(k, m2 int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := validateRate(k, m2); err != nil {
		return err
	}
	codec, err := NewCodec(m.scheme, k, m2)
	if err != nil {
		return err
	}
	if _, err := m.flushLocked(); err != nil {
		return err
	}
	m.logger.Info("coding rate updated", zap.Int("k", k), zap.Int("m", m2))
	m.k = k
	m.m = m2
	m.codec = codec
	// the empty current group was created under the old rate
	m.current = m.newGroup()
	return nil
}

// GetEncoded returns the sealed group, or nil.
func (m *GroupManager) GetEncoded(id protocol.GroupID) *EncodingGroup {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.sealed[id]
}

// CurrentGroupID returns the id of the accumulating group.
func (m *GroupManager) CurrentGroupID() protocol.GroupID {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current.Info.GroupID
}

// Len returns the number of retained sealed groups.
func (m *GroupManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sealed)
}

// Cleanup drops sealed groups with id < before.
func (m *GroupManager) Cleanup(before protocol.GroupID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id := range m.sealed {
		if id < before {
			delete(m.sealed, id)
		}
	}
}

// EncodingStats returns the number of encode calls and their cumulative
// duration in microseconds.
func (m *GroupManager) EncodingStats() (uint64, uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.encodeCalls, m.encodeTotalUS
}
