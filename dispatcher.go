package mpfec

import (
	"go.uber.org/zap"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
	"github.com/klingenchristopher/5G-FEC/internal/wire"
)

// Dispatcher binds a Controller to a Transport: controller emissions go out
// through Send, transport deliveries come back through the receive callback,
// and packets the transport drops are parked in a retry queue.
type Dispatcher struct {
	controller *Controller
	transport  Transport
	queue      *sendQueue
	logger     *zap.Logger

	// OnRecovered receives every source payload the controller delivers
	// upward, in order.
	OnRecovered func(payload []byte)
}

func NewDispatcher(c *Controller, t Transport, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		controller: c,
		transport:  t,
		logger:     logger,
	}
	d.queue = newSendQueue(func() {
		d.logger.Debug("send queue non-empty")
	})
	t.SetReceiveCallback(d.onReceive)
	t.SetPathEventCallback(c.OnPathEvent)
	return d
}

func (d *Dispatcher) onReceive(path protocol.PathID, payload []byte) {
	recovered, err := d.controller.ReceiveFECFrame(payload, path)
	if err != nil {
		d.logger.Warn("receive failed", zap.Error(err))
		return
	}
	if d.OnRecovered == nil {
		return
	}
	for _, p := range recovered {
		d.OnRecovered(p)
	}
}

// Send pushes application data through the controller and dispatches the
// resulting frames.
func (d *Dispatcher) Send(payload []byte, originPath protocol.PathID) error {
	metas, err := d.controller.SendStreamData(payload, originPath)
	if err != nil {
		return err
	}
	d.dispatch(metas)
	return nil
}

// Tick runs one periodic control pass and dispatches anything it sealed,
// then retries queued packets.
func (d *Dispatcher) Tick() error {
	metas, err := d.controller.PeriodicUpdate()
	if err != nil {
		return err
	}
	d.dispatch(metas)
	d.flushQueue()
	return nil
}

// Flush seals the accumulating group and dispatches its frames.
func (d *Dispatcher) Flush() error {
	metas, err := d.controller.Flush()
	if err != nil {
		return err
	}
	d.dispatch(metas)
	return nil
}

func (d *Dispatcher) dispatch(metas []SendPacketMeta) {
	for _, meta := range metas {
		if !d.sendOne(meta) {
			d.queue.Add(meta)
		}
	}
}

func (d *Dispatcher) sendOne(meta SendPacketMeta) bool {
	buf := wire.GetFrameBuffer()
	defer wire.PutFrameBuffer(buf)
	*buf = meta.Frame.Append(*buf)
	n, err := d.transport.Send(meta.PathID, *buf)
	if err != nil {
		d.logger.Warn("transport send failed",
			zap.Uint32("path_id", uint32(meta.PathID)), zap.Error(err))
		return false
	}
	// 0 bytes written means the transport dropped the payload
	return n > 0
}

func (d *Dispatcher) flushQueue() {
	for {
		meta, ok := d.queue.Peek()
		if !ok {
			return
		}
		if !d.sendOne(meta) {
			return
		}
		d.queue.Pop()
	}
}

// QueuedPackets returns how many packets await retry.
func (d *Dispatcher) QueuedPackets() int {
	return d.queue.Len()
}
