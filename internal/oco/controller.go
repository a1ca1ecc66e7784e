package oco

import (
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
	"github.com/klingenchristopher/5G-FEC/internal/scheduler"
)

// LinkMetrics is the per-path quality snapshot the learner decides from.
type LinkMetrics struct {
	PathID        protocol.PathID
	RTTMs         float64
	LossRate      float64
	BandwidthMbps float64
	JitterMs      float64
	PacketsSent   uint64
	PacketsLost   uint64
	BytesInFlight uint64
}

// RedundancyDecision is the learner's output: the coding rate and the
// preferred source/repair paths.
type RedundancyDecision struct {
	K          int
	M          int
	Rate       float64
	SourcePath protocol.PathID
	RepairPath protocol.PathID
	Confidence float64
}

type decisionRecord struct {
	decision      RedundancyDecision
	predictedLoss float64
	observedLoss  float64
	cost          float64
	decidedAt     time.Time
	fedBack       bool
}

const (
	defaultLossWeight     = 0.5
	defaultDelayWeight    = 0.3
	defaultOverheadWeight = 0.2
	defaultLearningRate   = 0.05
	defaultMinRate        = 0.1
	defaultMaxRate        = 1.0
	historyCapacity       = 100
)

// Controller runs the online convex optimization over redundancy decisions:
// it picks (k, m) and path preferences from current link metrics and adjusts
// its cost weights from observed loss feedback.
type Controller struct {
	metrics map[protocol.PathID]LinkMetrics

	alphaLoss     float64
	alphaDelay    float64
	alphaOverhead float64
	learningRate  float64

	gradAccumulator map[protocol.PathID]float64
	history         []decisionRecord

	minRate float64
	maxRate float64

	logger *zap.Logger
}

func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		metrics:         make(map[protocol.PathID]LinkMetrics),
		alphaLoss:       defaultLossWeight,
		alphaDelay:      defaultDelayWeight,
		alphaOverhead:   defaultOverheadWeight,
		learningRate:    defaultLearningRate,
		gradAccumulator: make(map[protocol.PathID]float64),
		minRate:         defaultMinRate,
		maxRate:         defaultMaxRate,
		logger:          logger,
	}
	c.renormalizeWeights()
	return c
}

func (c *Controller) renormalizeWeights() {
	sum := c.alphaLoss + c.alphaDelay + c.alphaOverhead
	if sum <= 0 {
		c.alphaLoss, c.alphaDelay, c.alphaOverhead = defaultLossWeight, defaultDelayWeight, defaultOverheadWeight
		return
	}
	c.alphaLoss /= sum
	c.alphaDelay /= sum
	c.alphaOverhead /= sum
}

// UpdateLinkMetrics replaces the snapshot for one path.
func (c *Controller) UpdateLinkMetrics(m LinkMetrics) {
	c.metrics[m.PathID] = m
}

// RemovePath drops a path's metrics and gradient state.
func (c *Controller) RemovePath(id protocol.PathID) {
	delete(c.metrics, id)
	delete(c.gradAccumulator, id)
}

// Metrics returns the tracked snapshots in ascending path-id order.
func (c *Controller) Metrics() []LinkMetrics {
	ids := maps.Keys(c.metrics)
	slices.Sort(ids)
	out := make([]LinkMetrics, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.metrics[id])
	}
	return out
}

// SetCostWeights replaces the cost weights; they are renormalized to sum to 1.
func (c *Controller) SetCostWeights(loss, delay, overhead float64) {
	c.alphaLoss, c.alphaDelay, c.alphaOverhead = loss, delay, overhead
	c.renormalizeWeights()
}

// SetConstraints bounds the redundancy rate the learner may pick.
func (c *Controller) SetConstraints(minRate, maxRate float64) {
	if minRate > maxRate {
		minRate, maxRate = maxRate, minRate
	}
	c.minRate = math.Max(0, minRate)
	c.maxRate = math.Min(1, maxRate)
}

// Constraints returns the active (min, max) rate bounds.
func (c *Controller) Constraints() (float64, float64) {
	return c.minRate, c.maxRate
}

// cost evaluates the decision cost model for a candidate configuration.
func (c *Controller) cost(k, m int, src, rep LinkMetrics) float64 {
	return c.alphaLoss*src.LossRate +
		c.alphaDelay*(src.RTTMs+rep.RTTMs)/1000 +
		c.alphaOverhead*(float64(m)/float64(k))
}

// requiredRedundancy maps link quality to a redundancy rate: twice the loss
// rate, inflated on slow paths where retransmission would be expensive.
func (c *Controller) requiredRedundancy(src LinkMetrics) float64 {
	r := src.LossRate * 2.0 * (1 + src.RTTMs/200*0.3)
	return math.Max(c.minRate, math.Min(c.maxRate, r))
}

// rateToParams converts a redundancy rate into (k, m). Smaller groups react
// faster under heavy redundancy; larger groups amortize overhead when little
// protection is needed.
func rateToParams(rate float64) (int, int) {
	k := 8
	if rate < 0.2 {
		k = 10
	} else if rate > 0.6 {
		k = 4
	}
	m := int(math.Ceil(float64(k) * rate))
	if m < 1 {
		m = 1
	}
	if m > k {
		m = k
	}
	return k, m
}

// ComputeOptimal derives the current best decision from the scheduler's path
// preferences and the correlation matrix. The decision is recorded so the
// next Feedback call can learn from it.
func (c *Controller) ComputeOptimal(sched *scheduler.PathScheduler, corr *scheduler.CorrelationMatrix) (RedundancyDecision, error) {
	src, err := sched.SelectSourcePath(0)
	if err != nil {
		return RedundancyDecision{}, err
	}
	rep, err := sched.SelectRepairPath(corr, src, 0)
	if err != nil {
		return RedundancyDecision{}, err
	}

	srcMetrics := c.metricsFor(src, sched)
	repMetrics := c.metricsFor(rep, sched)

	rate := c.requiredRedundancy(srcMetrics)
	k, m := rateToParams(rate)
	decision := RedundancyDecision{
		K:          k,
		M:          m,
		Rate:       rate,
		SourcePath: src,
		RepairPath: rep,
		Confidence: 1 - srcMetrics.LossRate,
	}
	c.pushHistory(decisionRecord{
		decision:      decision,
		predictedLoss: srcMetrics.LossRate,
		cost:          c.cost(k, m, srcMetrics, repMetrics),
		decidedAt:     time.Now(),
	})
	c.logger.Debug("redundancy decision",
		zap.Int("k", k), zap.Int("m", m),
		zap.Float64("rate", rate),
		zap.Uint32("source_path", uint32(src)),
		zap.Uint32("repair_path", uint32(rep)))
	return decision, nil
}

func (c *Controller) metricsFor(id protocol.PathID, sched *scheduler.PathScheduler) LinkMetrics {
	if m, ok := c.metrics[id]; ok {
		return m
	}
	if p := sched.Path(id); p != nil {
		return LinkMetrics{
			PathID:        p.PathID,
			RTTMs:         p.RTTMs,
			LossRate:      p.LossRate,
			BandwidthMbps: p.BandwidthMbps,
			JitterMs:      p.JitterMs,
		}
	}
	return LinkMetrics{PathID: id}
}

// Feedback folds one observed (loss, rtt) sample into the learner. The
// gradient step moves each path's accumulator against the prediction error of
// the most recent unanswered decision, or of the most recent decision when
// every recorded one has already been answered.
func (c *Controller) Feedback(observedLoss, observedRTTMs float64) {
	last := c.lastOpenRecord()
	if last == nil {
		return
	}
	err := observedLoss - last.predictedLoss
	for id, m := range c.metrics {
		grad := c.alphaLoss*m.LossRate + c.alphaDelay*(m.RTTMs/100)
		c.gradAccumulator[id] -= c.learningRate * grad * err
	}
	last.observedLoss = observedLoss
	last.fedBack = true
}

func (c *Controller) lastOpenRecord() *decisionRecord {
	for i := len(c.history) - 1; i >= 0; i-- {
		if !c.history[i].fedBack {
			return &c.history[i]
		}
	}
	if len(c.history) == 0 {
		return nil
	}
	return &c.history[len(c.history)-1]
}

func (c *Controller) pushHistory(rec decisionRecord) {
	c.history = append(c.history, rec)
	if len(c.history) > historyCapacity {
		c.history = c.history[len(c.history)-historyCapacity:]
	}
}

// HistoryLen returns the number of retained decision records.
func (c *Controller) HistoryLen() int {
	return len(c.history)
}

// GradientAccumulator exposes the per-path accumulator, primarily for tests
// and introspection.
func (c *Controller) GradientAccumulator(id protocol.PathID) float64 {
	return c.gradAccumulator[id]
}
