// Package mpfec fuses block FEC coding with a multipath packet scheduler. It
// accepts application byte streams, encodes them into source and repair
// frames, and dispatches the frames across concurrent network paths chosen
// for statistically independent loss. The underlying transport is an external
// collaborator behind the Transport interface; the core itself never touches
// the network.
package mpfec

import "github.com/klingenchristopher/5G-FEC/internal/protocol"

type PathEventType int

const (
	PathEventUp PathEventType = iota
	PathEventDown
	PathEventRTTUpdate
	PathEventLossReport
)

// PathEvent is an asynchronous notification from the transport about one of
// its paths. RTTMs is set for RTTUpdate events, PacketNumber for LossReport.
type PathEvent struct {
	Type         PathEventType
	RTTMs        float64
	PacketNumber protocol.PacketNumber
}

// Transport is the capability set the core requires from the layer below it.
// Send returns the number of bytes written; 0 with a nil error means the
// transport dropped the payload. The core never fragments a frame: one frame
// is one transport payload.
type Transport interface {
	Send(path protocol.PathID, payload []byte) (int, error)
	AddPath(local, remote string) (protocol.PathID, error)
	RemovePath(path protocol.PathID) error
	SetReceiveCallback(func(path protocol.PathID, payload []byte))
	SetPathEventCallback(func(path protocol.PathID, event PathEvent))
}
