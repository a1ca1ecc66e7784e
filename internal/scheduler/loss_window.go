package scheduler

import "github.com/klingenchristopher/5G-FEC/internal/protocol"

// LossWindow is a fixed-capacity ring of per-packet send outcomes for one
// path: 1 for lost, 0 for delivered. The loss rate is the ratio over the
// retained window.
type LossWindow struct {
	outcomes []float64
	head     int
	filled   int
	lost     int
}

func NewLossWindow() *LossWindow {
	return &LossWindow{outcomes: make([]float64, protocol.LossWindowSize)}
}

func (w *LossWindow) record(outcome float64) {
	if w.filled == len(w.outcomes) {
		w.lost -= int(w.outcomes[w.head])
	} else {
		w.filled++
	}
	w.outcomes[w.head] = outcome
	w.lost += int(outcome)
	w.head = (w.head + 1) % len(w.outcomes)
}

// RecordDelivered notes one acknowledged packet.
func (w *LossWindow) RecordDelivered() { w.record(0) }

// RecordLost notes one lost packet.
func (w *LossWindow) RecordLost() { w.record(1) }

// LossRate is the lost fraction over the window; 0 before any sample.
func (w *LossWindow) LossRate() float64 {
	if w.filled == 0 {
		return 0
	}
	return float64(w.lost) / float64(w.filled)
}

// Outcomes returns the retained outcomes oldest-first.
func (w *LossWindow) Outcomes() []float64 {
	out := make([]float64, 0, w.filled)
	start := w.head - w.filled
	for i := 0; i < w.filled; i++ {
		out = append(out, w.outcomes[(start+i+len(w.outcomes))%len(w.outcomes)])
	}
	return out
}

// Samples returns how many outcomes the window currently holds.
func (w *LossWindow) Samples() int { return w.filled }
