package scheduler

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

// minCorrelationSamples is the minimum number of paired loss observations
// before the Pearson estimator overwrites a matrix entry.
const minCorrelationSamples = 8

type pathPair struct {
	lo protocol.PathID
	hi protocol.PathID
}

func canonicalPair(i, j protocol.PathID) pathPair {
	if i > j {
		i, j = j, i
	}
	return pathPair{lo: i, hi: j}
}

// CorrelationMatrix stores the symmetric loss-correlation coefficient between
// path pairs. Self-correlation is 1; absent entries are 0 (independence).
// Callers hold the controller lock; the matrix has no lock of its own.
type CorrelationMatrix struct {
	entries map[pathPair]float64
}

func NewCorrelationMatrix() *CorrelationMatrix {
	return &CorrelationMatrix{entries: make(map[pathPair]float64)}
}

// Update stores rho for (i, j), clamped to [-1, 1], under the canonical key.
func (c *CorrelationMatrix) Update(i, j protocol.PathID, rho float64) {
	if i == j {
		return
	}
	c.entries[canonicalPair(i, j)] = math.Max(-1, math.Min(1, rho))
}

// Get returns the stored coefficient, 1 for i==j, 0 when absent.
func (c *CorrelationMatrix) Get(i, j protocol.PathID) float64 {
	if i == j {
		return 1
	}
	return c.entries[canonicalPair(i, j)]
}

// LeastCorrelated returns the candidate minimizing |rho(i, c)|, ties broken by
// ascending path id. ok is false when candidates is empty.
func (c *CorrelationMatrix) LeastCorrelated(i protocol.PathID, candidates []protocol.PathID) (protocol.PathID, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	sorted := slices.Clone(candidates)
	slices.Sort(sorted)
	best := sorted[0]
	bestAbs := math.Abs(c.Get(i, best))
	for _, cand := range sorted[1:] {
		if abs := math.Abs(c.Get(i, cand)); abs < bestAbs {
			best, bestAbs = cand, abs
		}
	}
	return best, true
}

// EstimateFromWindows recomputes pairwise coefficients from the paths' loss
// windows using the sample Pearson correlation over the trailing min-length
// run of outcomes. Entries without enough paired samples are left untouched,
// preserving host-provided values.
func (c *CorrelationMatrix) EstimateFromWindows(windows map[protocol.PathID]*LossWindow) {
	ids := make([]protocol.PathID, 0, len(windows))
	for id := range windows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for a := 0; a < len(ids); a++ {
		for b := a + 1; b < len(ids); b++ {
			x := windows[ids[a]].Outcomes()
			y := windows[ids[b]].Outcomes()
			n := len(x)
			if len(y) < n {
				n = len(y)
			}
			if n < minCorrelationSamples {
				continue
			}
			rho := stat.Correlation(x[len(x)-n:], y[len(y)-n:], nil)
			if math.IsNaN(rho) {
				// constant series (all delivered or all lost) carry no signal
				continue
			}
			c.Update(ids[a], ids[b], rho)
		}
	}
}
