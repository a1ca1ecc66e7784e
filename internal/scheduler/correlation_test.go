package scheduler

import (
	"math"
	"testing"

	"github.com/klingenchristopher/5G-FEC/internal/protocol"
)

func TestCorrelationCanonicalization(t *testing.T) {
	c := NewCorrelationMatrix()
	c.Update(3, 1, 0.7)
	if got := c.Get(1, 3); got != 0.7 {
		t.Errorf("Get(1, 3) = %g, want 0.7", got)
	}
	if got := c.Get(3, 1); got != 0.7 {
		t.Errorf("Get(3, 1) = %g, want 0.7", got)
	}
	if got := c.Get(5, 5); got != 1 {
		t.Errorf("self correlation = %g, want 1", got)
	}
	if got := c.Get(7, 8); got != 0 {
		t.Errorf("absent entry = %g, want 0", got)
	}
}

func TestCorrelationClamped(t *testing.T) {
	c := NewCorrelationMatrix()
	c.Update(0, 1, 3.5)
	if got := c.Get(0, 1); got != 1 {
		t.Errorf("Get after over-range update = %g, want 1", got)
	}
	c.Update(0, 1, -2)
	if got := c.Get(0, 1); got != -1 {
		t.Errorf("Get after under-range update = %g, want -1", got)
	}
}

func TestLeastCorrelatedTieBreaksAscending(t *testing.T) {
	c := NewCorrelationMatrix()
	c.Update(0, 1, 0.5)
	c.Update(0, 2, -0.5)
	best, ok := c.LeastCorrelated(0, []protocol.PathID{2, 1})
	if !ok {
		t.Fatal("no candidate chosen")
	}
	if best != 1 {
		t.Errorf("LeastCorrelated = %d, want 1 (lowest id on |rho| tie)", best)
	}
	if _, ok := c.LeastCorrelated(0, nil); ok {
		t.Error("LeastCorrelated with no candidates reported ok")
	}
}

func TestEstimateFromWindows(t *testing.T) {
	c := NewCorrelationMatrix()
	wa, wb, wc := NewLossWindow(), NewLossWindow(), NewLossWindow()
	// a and b lose the same packets; c loses the complement
	for i := 0; i < 32; i++ {
		if i%2 == 0 {
			wa.RecordLost()
			wb.RecordLost()
			wc.RecordDelivered()
		} else {
			wa.RecordDelivered()
			wb.RecordDelivered()
			wc.RecordLost()
		}
	}
	c.EstimateFromWindows(map[protocol.PathID]*LossWindow{0: wa, 1: wb, 2: wc})
	if got := c.Get(0, 1); math.Abs(got-1) > 1e-9 {
		t.Errorf("rho(0, 1) = %g, want 1", got)
	}
	if got := c.Get(0, 2); math.Abs(got+1) > 1e-9 {
		t.Errorf("rho(0, 2) = %g, want -1", got)
	}
}

func TestEstimateSkipsConstantSeries(t *testing.T) {
	c := NewCorrelationMatrix()
	c.Update(0, 1, 0.42)
	wa, wb := NewLossWindow(), NewLossWindow()
	for i := 0; i < 32; i++ {
		wa.RecordDelivered()
		wb.RecordDelivered()
	}
	c.EstimateFromWindows(map[protocol.PathID]*LossWindow{0: wa, 1: wb})
	if got := c.Get(0, 1); got != 0.42 {
		t.Errorf("constant series overwrote host value: rho = %g", got)
	}
}

func TestLossWindowSlides(t *testing.T) {
	w := NewLossWindow()
	for i := 0; i < protocol.LossWindowSize; i++ {
		w.RecordLost()
	}
	if got := w.LossRate(); got != 1 {
		t.Fatalf("LossRate() = %g, want 1", got)
	}
	for i := 0; i < protocol.LossWindowSize; i++ {
		w.RecordDelivered()
	}
	if got := w.LossRate(); got != 0 {
		t.Errorf("LossRate() after sliding = %g, want 0", got)
	}
	if got := w.Samples(); got != protocol.LossWindowSize {
		t.Errorf("Samples() = %d, want %d", got, protocol.LossWindowSize)
	}
}
