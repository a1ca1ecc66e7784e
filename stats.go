package mpfec

import "github.com/francoispqt/gojay"

// Statistics is a read-only snapshot of the connection's cumulative counters.
type Statistics struct {
	TotalPacketsSent      uint64
	SourcePacketsSent     uint64
	RepairPacketsSent     uint64
	PacketsRecovered      uint64
	FECGroupsCreated      uint64
	FramesDropped         uint64
	CurrentRedundancyRate float64
	AvgEncodingTimeUS     float64
}

var _ gojay.MarshalerJSONObject = &Statistics{}

func (s *Statistics) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("total_packets_sent", s.TotalPacketsSent)
	enc.Uint64Key("source_packets_sent", s.SourcePacketsSent)
	enc.Uint64Key("repair_packets_sent", s.RepairPacketsSent)
	enc.Uint64Key("packets_recovered", s.PacketsRecovered)
	enc.Uint64Key("fec_groups_created", s.FECGroupsCreated)
	enc.Uint64Key("frames_dropped", s.FramesDropped)
	enc.Float64Key("current_redundancy_rate", s.CurrentRedundancyRate)
	enc.Float64Key("avg_encoding_time_us", s.AvgEncodingTimeUS)
}

func (s *Statistics) IsNil() bool { return s == nil }
