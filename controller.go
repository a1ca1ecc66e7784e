package mpfec

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/klingenchristopher/5G-FEC/internal/fec"
	"github.com/klingenchristopher/5G-FEC/internal/oco"
	"github.com/klingenchristopher/5G-FEC/internal/protocol"
	"github.com/klingenchristopher/5G-FEC/internal/scheduler"
	"github.com/klingenchristopher/5G-FEC/internal/wire"
)

// ErrNoPathsAvailable is surfaced by send operations when every path is
// either down or past the availability thresholds. The caller may buffer and
// retry.
var ErrNoPathsAvailable = scheduler.ErrNoPathsAvailable

// SendPacketMeta describes one frame the controller wants on the wire:
// which path, under which packet number, carrying which frame.
type SendPacketMeta struct {
	PacketNumber protocol.PacketNumber
	PathID       protocol.PathID
	Frame        *wire.FECFrame
	SendTime     time.Time
	IsRepair     bool
}

const rttEWMAWeight = 0.125 // new-sample weight; history keeps 0.875

// Controller is the per-connection coordinator. It exclusively owns the group
// manager, receiver, packet mapper, scheduler, correlation matrix and
// redundancy controller; all mutation goes through its lock. Subcomponents
// with their own locks (group manager, mapper) may additionally be hit from
// the transport's receive task; lock order is controller first.
type Controller struct {
	mutex sync.Mutex

	config Config
	logger *zap.Logger

	groups   *fec.GroupManager
	receiver *fec.Receiver
	mapper   *fec.PacketNumberMapper
	sched    *scheduler.PathScheduler
	corr     *scheduler.CorrelationMatrix
	oco      *oco.Controller

	lossWindows map[protocol.PathID]*scheduler.LossWindow
	nextPN      map[protocol.PathID]protocol.PacketNumber

	decision    oco.RedundancyDecision
	hasDecision bool

	fecEnabled     bool
	strategy       oco.Strategy
	strategyPinned bool

	updateGate   *rate.Limiter
	feedbackGate *rate.Limiter

	totalSent     uint64
	sourceSent    uint64
	repairSent    uint64
	groupsCreated uint64
	parseDropped  uint64
}

// NewController builds a controller from cfg. Configuration errors are
// surfaced immediately and leave no partial state.
func NewController(cfg Config) (*Controller, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	groups, err := fec.NewGroupManager(cfg.Scheme, cfg.DefaultK, cfg.DefaultM, cfg.BlockSize, cfg.Logger)
	if err != nil {
		return nil, err
	}
	receiver, err := fec.NewReceiver(cfg.Scheme, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Controller{
		config:       cfg,
		logger:       cfg.Logger,
		groups:       groups,
		receiver:     receiver,
		mapper:       fec.NewPacketNumberMapper(),
		sched:        scheduler.NewPathScheduler(cfg.Logger),
		corr:         scheduler.NewCorrelationMatrix(),
		oco:          oco.NewController(cfg.Logger),
		lossWindows:  make(map[protocol.PathID]*scheduler.LossWindow),
		nextPN:       make(map[protocol.PathID]protocol.PacketNumber),
		fecEnabled:   true,
		strategy:     oco.StrategyBalanced,
		updateGate:   rate.NewLimiter(rate.Every(protocol.PeriodicUpdateInterval), 1),
		feedbackGate: rate.NewLimiter(rate.Every(protocol.MinFeedbackInterval), 1),
	}, nil
}

// AddPath registers a path with its initial state.
func (c *Controller) AddPath(state scheduler.PathState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sched.AddPath(state)
	if _, ok := c.lossWindows[state.PathID]; !ok {
		c.lossWindows[state.PathID] = scheduler.NewLossWindow()
	}
	c.oco.UpdateLinkMetrics(linkMetricsFrom(state))
	c.logger.Info("path added", zap.Uint32("path_id", uint32(state.PathID)))
}

// RemovePath drops a path and all of its scheduler and learner state.
func (c *Controller) RemovePath(id protocol.PathID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sched.RemovePath(id)
	c.oco.RemovePath(id)
	delete(c.lossWindows, id)
	if c.hasDecision && (c.decision.SourcePath == id || c.decision.RepairPath == id) {
		c.hasDecision = false
	}
}

// UpdatePathState replaces a path's quality snapshot.
func (c *Controller) UpdatePathState(state scheduler.PathState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sched.UpdatePathState(state)
	c.oco.UpdateLinkMetrics(linkMetricsFrom(state))
}

// UpdateLossCorrelation stores a host-measured correlation coefficient.
func (c *Controller) UpdateLossCorrelation(i, j protocol.PathID, rho float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.corr.Update(i, j, rho)
}

// SetFECEnabled toggles coding. While disabled, SendStreamData passes
// payloads through as bare source frames.
func (c *Controller) SetFECEnabled(enabled bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fecEnabled = enabled
}

// SetFECStrategy pins a redundancy strategy. Automatic strategy selection
// stops once the host has chosen; StrategyDynamic pins the full rate range.
func (c *Controller) SetFECStrategy(s oco.Strategy) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.strategy = s
	c.strategyPinned = true
	minRate, maxRate := s.RedundancyRange()
	c.oco.SetConstraints(minRate, maxRate)
	c.logger.Info("FEC strategy set", zap.Stringer("strategy", s))
}

func linkMetricsFrom(state scheduler.PathState) oco.LinkMetrics {
	return oco.LinkMetrics{
		PathID:        state.PathID,
		RTTMs:         state.RTTMs,
		LossRate:      state.LossRate,
		BandwidthMbps: state.BandwidthMbps,
		JitterMs:      state.JitterMs,
	}
}

func (c *Controller) allocPN(path protocol.PathID) protocol.PacketNumber {
	c.nextPN[path]++
	return c.nextPN[path]
}

// ensureDecisionLocked makes sure a usable redundancy decision exists,
// recomputing when there is none or its source path went away.
func (c *Controller) ensureDecisionLocked() error {
	if c.hasDecision {
		if p := c.sched.Path(c.decision.SourcePath); p != nil && p.Available() {
			return nil
		}
	}
	c.syncMetricsLocked()
	decision, err := c.oco.ComputeOptimal(c.sched, c.corr)
	if err != nil {
		return err
	}
	c.decision = decision
	c.hasDecision = true
	return nil
}

// syncMetricsLocked pushes the freshest per-path view (scheduler state plus
// sliding loss windows) into the learner.
func (c *Controller) syncMetricsLocked() {
	for _, id := range c.sched.PathIDs() {
		p := c.sched.Path(id)
		if w := c.lossWindows[id]; w != nil && w.Samples() > 0 {
			p.LossRate = w.LossRate()
		}
		c.oco.UpdateLinkMetrics(linkMetricsFrom(*p))
	}
}

// SendStreamData slices payload into coding blocks, feeds them to the group
// manager, and returns the frames of every group that sealed, with paths and
// packet numbers assigned. With FEC disabled the payload is wrapped as a
// single unprotected source frame on the hint path.
func (c *Controller) SendStreamData(payload []byte, originPath protocol.PathID) ([]SendPacketMeta, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.fecEnabled {
		frame := &wire.FECFrame{
			Type:        wire.FrameTypeSource,
			GroupID:     0,
			BlockIndex:  0,
			TotalBlocks: 1,
			Payload:     payload,
		}
		meta := SendPacketMeta{
			PacketNumber: c.allocPN(originPath),
			PathID:       originPath,
			Frame:        frame,
			SendTime:     time.Now(),
		}
		c.totalSent++
		c.sourceSent++
		return []SendPacketMeta{meta}, nil
	}

	if err := c.ensureDecisionLocked(); err != nil {
		return nil, err
	}

	blockSize := c.config.BlockSize
	var out []SendPacketMeta
	for off := 0; off < len(payload); off += blockSize {
		end := off + blockSize
		block := make([]byte, blockSize)
		if end > len(payload) {
			end = len(payload)
		}
		copy(block, payload[off:end])

		sealedID, err := c.groups.AddSource(block)
		if err != nil {
			return out, fmt.Errorf("mpfec: adding source block: %w", err)
		}
		if sealedID == 0 {
			continue
		}
		metas, err := c.emitGroupLocked(sealedID)
		if err != nil {
			return out, err
		}
		out = append(out, metas...)
	}
	return out, nil
}

// Flush seals the accumulating group with zero padding and returns its
// frames.
func (c *Controller) Flush() ([]SendPacketMeta, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.flushLocked()
}

func (c *Controller) flushLocked() ([]SendPacketMeta, error) {
	ids, err := c.groups.Flush()
	if err != nil {
		return nil, err
	}
	var out []SendPacketMeta
	for _, id := range ids {
		metas, err := c.emitGroupLocked(id)
		if err != nil {
			return out, err
		}
		out = append(out, metas...)
	}
	return out, nil
}

// emitGroupLocked turns a sealed group into frames: sources in index order
// 0..k-1 on the decision's source path, then repairs k..k+m-1 on the repair
// path. Within the emit sequence a later group never precedes an earlier one.
func (c *Controller) emitGroupLocked(id protocol.GroupID) ([]SendPacketMeta, error) {
	if err := c.ensureDecisionLocked(); err != nil {
		return nil, err
	}
	g := c.groups.GetEncoded(id)
	if g == nil {
		return nil, fmt.Errorf("mpfec: sealed group %d not retained", id)
	}
	k := g.Info.K
	total := uint32(k + g.Info.M)
	reserved := wire.ReservedWithSourceCount(k)
	now := time.Now()

	metas := make([]SendPacketMeta, 0, total)
	emit := func(index int, block []byte, isRepair bool, path protocol.PathID) {
		frame := &wire.FECFrame{
			Type:        wire.FrameTypeSource,
			GroupID:     id,
			BlockIndex:  protocol.BlockIndex(index),
			TotalBlocks: total,
			Reserved:    reserved,
			Payload:     block,
		}
		if isRepair {
			frame.Type = wire.FrameTypeRepair
		}
		pn := c.allocPN(path)
		c.mapper.Add(id, frame.BlockIndex, path, pn, isRepair)
		metas = append(metas, SendPacketMeta{
			PacketNumber: pn,
			PathID:       path,
			Frame:        frame,
			SendTime:     now,
			IsRepair:     isRepair,
		})
	}
	for i, block := range g.SourceBlocks {
		emit(i, block, false, c.decision.SourcePath)
	}
	for i, block := range g.RepairBlocks {
		emit(k+i, block, true, c.decision.RepairPath)
	}

	c.groupsCreated++
	c.totalSent += uint64(total)
	c.sourceSent += uint64(k)
	c.repairSent += uint64(g.Info.M)
	return metas, nil
}

// ReceiveFECFrame parses one transport payload and hands it to the receive
// side. Malformed frames are dropped and counted, never fatal. The returned
// slices are the recovered source payloads, if this frame completed a group.
func (c *Controller) ReceiveFECFrame(frameBytes []byte, fromPath protocol.PathID) ([][]byte, error) {
	frame, err := wire.ParseFECFrame(frameBytes)
	if err != nil {
		c.mutex.Lock()
		c.parseDropped++
		c.mutex.Unlock()
		c.logger.Warn("dropping unparseable frame",
			zap.Uint32("path_id", uint32(fromPath)), zap.Error(err))
		return nil, nil
	}
	// unprotected passthrough emitted while FEC was disabled on the sender
	if frame.GroupID == 0 && frame.TotalBlocks == 1 && !frame.IsRepair() {
		return [][]byte{frame.Payload}, nil
	}
	return c.receiver.OnFrame(frame), nil
}

// OnAck records delivery of (path, pn). The RTT sample updates the path's
// smoothed estimate; unknown mappings are stale ACKs and are ignored.
func (c *Controller) OnAck(path protocol.PathID, pn protocol.PacketNumber, rttUS uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if mapping := c.mapper.LookupPacket(path, pn); mapping == nil {
		c.logger.Debug("stale ACK",
			zap.Uint32("path_id", uint32(path)), zap.Uint64("pn", uint64(pn)))
		return
	}
	rttMs := float64(rttUS) / 1000
	if p := c.sched.Path(path); p != nil {
		if p.RTTMs == 0 {
			p.RTTMs = rttMs
		} else {
			p.RTTMs = (1-rttEWMAWeight)*p.RTTMs + rttEWMAWeight*rttMs
		}
	}
	if w := c.lossWindows[path]; w != nil {
		w.RecordDelivered()
	}
}

// OnPacketLost records the loss of (path, pn) and refreshes the path's
// windowed loss rate.
func (c *Controller) OnPacketLost(path protocol.PathID, pn protocol.PacketNumber) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	w := c.lossWindows[path]
	if w == nil {
		return
	}
	w.RecordLost()
	if p := c.sched.Path(path); p != nil {
		p.LossRate = w.LossRate()
	}
}

// OnPathEvent applies a transport-originated path notification.
func (c *Controller) OnPathEvent(path protocol.PathID, event PathEvent) {
	switch event.Type {
	case PathEventUp:
		c.mutex.Lock()
		if c.sched.Path(path) == nil {
			c.mutex.Unlock()
			c.AddPath(scheduler.PathState{PathID: path, BandwidthMbps: 1})
			return
		}
		c.mutex.Unlock()
	case PathEventDown:
		c.RemovePath(path)
	case PathEventRTTUpdate:
		c.mutex.Lock()
		if p := c.sched.Path(path); p != nil {
			if p.RTTMs == 0 {
				p.RTTMs = event.RTTMs
			} else {
				p.RTTMs = (1-rttEWMAWeight)*p.RTTMs + rttEWMAWeight*event.RTTMs
			}
		}
		c.mutex.Unlock()
	case PathEventLossReport:
		c.OnPacketLost(path, event.PacketNumber)
	}
}

// PeriodicUpdate runs one control tick: metric sync, correlation estimation,
// strategy and rate recomputation, weight update, stale-group flush and
// cleanup. It is gated to at most one pass per 100 ms; extra calls are
// no-ops. Frames of groups sealed by the tick (stale flush, rate change) are
// returned for dispatch.
func (c *Controller) PeriodicUpdate() ([]SendPacketMeta, error) {
	if !c.updateGate.Allow() {
		return nil, nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.syncMetricsLocked()
	c.corr.EstimateFromWindows(c.lossWindows)

	if !c.strategyPinned {
		if s := oco.SelectStrategy(c.oco.Metrics()); s != c.strategy {
			c.strategy = s
			minRate, maxRate := s.RedundancyRange()
			c.oco.SetConstraints(minRate, maxRate)
			c.logger.Info("strategy switched", zap.Stringer("strategy", s))
		}
	}

	if c.hasDecision && c.feedbackGate.Allow() {
		if p := c.sched.Path(c.decision.SourcePath); p != nil {
			c.oco.Feedback(p.LossRate, p.RTTMs)
		}
	}

	var out []SendPacketMeta
	decision, err := c.oco.ComputeOptimal(c.sched, c.corr)
	if err != nil {
		// keep the previous decision; sends fail on their own if paths stay down
		c.logger.Warn("decision recompute failed", zap.Error(err))
	} else {
		oldK, oldM := c.groups.Params()
		if decision.K != oldK || decision.M != oldM {
			metas, ferr := c.flushLocked()
			if ferr != nil {
				return out, ferr
			}
			out = append(out, metas...)
			if uerr := c.groups.UpdateRate(decision.K, decision.M); uerr != nil {
				c.logger.Warn("rate update rejected", zap.Error(uerr))
			}
		}
		c.decision = decision
		c.hasDecision = true
	}

	c.sched.UpdateWeights()

	if ids, ferr := c.groups.FlushStale(protocol.GroupFlushAge); ferr == nil {
		for _, id := range ids {
			metas, eerr := c.emitGroupLocked(id)
			if eerr != nil {
				return out, eerr
			}
			out = append(out, metas...)
		}
	}

	if c.groups.Len() > protocol.GroupCleanupThreshold {
		horizon := c.groups.CurrentGroupID() - protocol.GroupCleanupKeep
		c.groups.Cleanup(horizon)
		c.mapper.Cleanup(horizon)
		c.receiver.Cleanup(horizon)
	}
	return out, nil
}

// GetStatistics returns a snapshot of the cumulative counters.
func (c *Controller) GetStatistics() Statistics {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	k, m := c.groups.Params()
	calls, totalUS := c.groups.EncodingStats()
	var avgUS float64
	if calls > 0 {
		avgUS = float64(totalUS) / float64(calls)
	}
	return Statistics{
		TotalPacketsSent:      c.totalSent,
		SourcePacketsSent:     c.sourceSent,
		RepairPacketsSent:     c.repairSent,
		PacketsRecovered:      c.receiver.RecoveredPackets(),
		FECGroupsCreated:      c.groupsCreated,
		FramesDropped:         c.parseDropped + c.receiver.DroppedFrames(),
		CurrentRedundancyRate: float64(m) / float64(k),
		AvgEncodingTimeUS:     avgUS,
	}
}

// Weights exposes the scheduler's current path-weight distribution.
func (c *Controller) Weights() map[protocol.PathID]float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sched.Weights()
}

// Decision returns the current redundancy decision and whether one exists.
func (c *Controller) Decision() (oco.RedundancyDecision, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.decision, c.hasDecision
}
