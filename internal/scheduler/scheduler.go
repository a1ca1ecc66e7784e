package scheduler

import (
	"errors"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

var ErrNoPathsAvailable = errors.New("scheduler: no paths available")

// PathState is the per-path snapshot read by selection and weight updates.
type PathState struct {
	PathID        protocol.PathID
	RTTMs         float64
	LossRate      float64
	BandwidthMbps float64
	JitterMs      float64
	CwndBytes     uint64
}

// Available reports whether the path may carry new packets.
func (s *PathState) Available() bool {
	return s.LossRate < 0.5 && s.BandwidthMbps > 0.1
}

// Multiplicative-weights parameters. The update achieves regret O(sqrt(T log N))
// against any fixed path in hindsight.
const (
	weightLearningRate = 0.1 // alpha
	weightRTTCoeff     = 0.5 // beta
	weightLossCoeff    = 0.3 // gamma
	weightBWCoeff      = 0.2 // delta
	weightFloor        = 1e-3
)

// PathScheduler holds the per-path weight distribution and implements the
// three selection policies. Callers hold the controller lock.
type PathScheduler struct {
	paths   map[protocol.PathID]*PathState
	weights map[protocol.PathID]float64
	rng     *rand.Rand
	logger  *zap.Logger
}

func NewPathScheduler(logger *zap.Logger) *PathScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathScheduler{
		paths:   make(map[protocol.PathID]*PathState),
		weights: make(map[protocol.PathID]float64),
		rng:     rand.New(rand.NewSource(rand.Int63())),
		logger:  logger,
	}
}

// AddPath registers a path. The new path starts at weight 1/|paths| and the
// distribution is renormalized.
func (s *PathScheduler) AddPath(state PathState) {
	s.paths[state.PathID] = &state
	s.weights[state.PathID] = 1 / float64(len(s.paths))
	s.normalize()
}

// RemovePath drops a path and renormalizes the remaining weights.
func (s *PathScheduler) RemovePath(id protocol.PathID) {
	delete(s.paths, id)
	delete(s.weights, id)
	s.normalize()
}

// UpdatePathState replaces the snapshot for an existing path; unknown paths
// are added.
func (s *PathScheduler) UpdatePathState(state PathState) {
	if _, ok := s.paths[state.PathID]; !ok {
		s.AddPath(state)
		return
	}
	s.paths[state.PathID] = &state
}

// PathIDs returns all registered path ids in ascending order.
func (s *PathScheduler) PathIDs() []protocol.PathID {
	ids := maps.Keys(s.paths)
	slices.Sort(ids)
	return ids
}

// Path returns the snapshot for id, or nil.
func (s *PathScheduler) Path(id protocol.PathID) *PathState {
	return s.paths[id]
}

// Weights returns a copy of the weight distribution.
func (s *PathScheduler) Weights() map[protocol.PathID]float64 {
	return maps.Clone(s.weights)
}

func (s *PathScheduler) availablePaths() []protocol.PathID {
	var ids []protocol.PathID
	for id, p := range s.paths {
		if p.Available() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// cost is the per-path loss function of the multiplicative-weights learner.
func cost(p *PathState) float64 {
	return weightRTTCoeff*(p.RTTMs/100) +
		weightLossCoeff*p.LossRate +
		weightBWCoeff*(100/math.Max(1, p.BandwidthMbps))
}

// UpdateWeights runs one multiplicative-weights step over the current path
// states, then renormalizes with the weight floor.
func (s *PathScheduler) UpdateWeights() {
	if len(s.paths) == 0 {
		return
	}
	var total float64
	costs := make(map[protocol.PathID]float64, len(s.paths))
	for id, p := range s.paths {
		c := cost(p)
		costs[id] = c
		total += c
	}
	if total <= 0 {
		return
	}
	for id, c := range costs {
		s.weights[id] *= math.Exp(-weightLearningRate * c / total)
	}
	s.normalize()
}

// normalize rescales weights to sum to 1 with every weight >= weightFloor.
// Floored paths are pinned and the residual mass is split proportionally
// across the rest.
func (s *PathScheduler) normalize() {
	n := len(s.weights)
	if n == 0 {
		return
	}
	var sum float64
	for _, w := range s.weights {
		sum += w
	}
	if sum <= 0 {
		for id := range s.weights {
			s.weights[id] = 1 / float64(n)
		}
		return
	}
	for id, w := range s.weights {
		s.weights[id] = w / sum
	}
	for {
		floored := 0
		var free float64
		for _, w := range s.weights {
			if w <= weightFloor {
				floored++
			} else {
				free += w
			}
		}
		if floored == 0 || floored == n {
			if floored == n {
				for id := range s.weights {
					s.weights[id] = 1 / float64(n)
				}
			}
			return
		}
		target := 1 - weightFloor*float64(floored)
		changed := false
		for id, w := range s.weights {
			if w <= weightFloor {
				s.weights[id] = weightFloor
				continue
			}
			scaled := w * target / free
			if scaled <= weightFloor {
				changed = true
			}
			s.weights[id] = scaled
		}
		if !changed {
			return
		}
	}
}

// SelectPath picks an available path weighted-randomly by the current
// distribution.
func (s *PathScheduler) SelectPath(packetSize int) (protocol.PathID, error) {
	avail := s.availablePaths()
	if len(avail) == 0 {
		return 0, ErrNoPathsAvailable
	}
	var total float64
	for _, id := range avail {
		total += s.weights[id]
	}
	r := s.rng.Float64() * total
	for _, id := range avail {
		r -= s.weights[id]
		if r <= 0 {
			return id, nil
		}
	}
	return avail[len(avail)-1], nil
}

// sourceScore ranks paths for source packets: low RTT and loss dominate, with
// a small bandwidth bonus.
func sourceScore(p *PathState) float64 {
	return -0.4*p.RTTMs - 0.5*1000*p.LossRate + 0.1*p.BandwidthMbps
}

// SelectSourcePath picks the deterministic argmax of the source score over
// available paths, ties broken by ascending path id.
func (s *PathScheduler) SelectSourcePath(packetSize int) (protocol.PathID, error) {
	avail := s.availablePaths()
	if len(avail) == 0 {
		return 0, ErrNoPathsAvailable
	}
	best := avail[0]
	bestScore := sourceScore(s.paths[best])
	for _, id := range avail[1:] {
		if score := sourceScore(s.paths[id]); score > bestScore {
			best, bestScore = id, score
		}
	}
	return best, nil
}

// SelectRepairPath picks the available path least loss-correlated with the
// source path. It falls back to the source path when no alternative exists.
func (s *PathScheduler) SelectRepairPath(corr *CorrelationMatrix, source protocol.PathID, packetSize int) (protocol.PathID, error) {
	if len(s.paths) == 0 {
		return 0, ErrNoPathsAvailable
	}
	var candidates []protocol.PathID
	for _, id := range s.availablePaths() {
		if id != source {
			candidates = append(candidates, id)
		}
	}
	if best, ok := corr.LeastCorrelated(source, candidates); ok {
		return best, nil
	}
	return source, nil
}
