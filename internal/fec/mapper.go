package fec

import (
	"sync"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

// PacketMapping ties one emitted packet to its place in an encoding group.
// The (PathID, PacketNumber) pair is unique across all live mappings.
type PacketMapping struct {
	GroupID      protocol.GroupID
	BlockIndex   protocol.BlockIndex
	PathID       protocol.PathID
	PacketNumber protocol.PacketNumber
	IsRepair     bool
}

type pathPacketKey struct {
	path protocol.PathID
	pn   protocol.PacketNumber
}

// PacketNumberMapper maintains the bidirectional mapping between per-path
// packet numbers and group positions. Per-path packet number spaces are
// independent, so a composite key is required.
type PacketNumberMapper struct {
	mutex sync.Mutex

	byPacket map[pathPacketKey]*PacketMapping
	byGroup  map[protocol.GroupID][]*PacketMapping
}

func NewPacketNumberMapper() *PacketNumberMapper {
	return &PacketNumberMapper{
		byPacket: make(map[pathPacketKey]*PacketMapping),
		byGroup:  make(map[protocol.GroupID][]*PacketMapping),
	}
}

// Add records a mapping in both indices.
func (m *PacketNumberMapper) Add(groupID protocol.GroupID, blockIndex protocol.BlockIndex, pathID protocol.PathID, pn protocol.PacketNumber, isRepair bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	mapping := &PacketMapping{
		GroupID:      groupID,
		BlockIndex:   blockIndex,
		PathID:       pathID,
		PacketNumber: pn,
		IsRepair:     isRepair,
	}
	m.byPacket[pathPacketKey{pathID, pn}] = mapping
	m.byGroup[groupID] = append(m.byGroup[groupID], mapping)
}

// LookupPacket returns the mapping for (path, pn), or nil.
func (m *PacketNumberMapper) LookupPacket(pathID protocol.PathID, pn protocol.PacketNumber) *PacketMapping {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.byPacket[pathPacketKey{pathID, pn}]
}

// LookupGroup returns all mappings recorded for a group, in insertion order.
func (m *PacketNumberMapper) LookupGroup(groupID protocol.GroupID) []*PacketMapping {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.byGroup[groupID]
}

// Cleanup atomically drops every mapping for groups with id < before from
// both indices.
func (m *PacketNumberMapper) Cleanup(before protocol.GroupID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for groupID, mappings := range m.byGroup {
		if groupID >= before {
			continue
		}
		for _, mapping := range mappings {
			delete(m.byPacket, pathPacketKey{mapping.PathID, mapping.PacketNumber})
		}
		delete(m.byGroup, groupID)
	}
}

// Len returns the number of live packet mappings.
func (m *PacketNumberMapper) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.byPacket)
}
