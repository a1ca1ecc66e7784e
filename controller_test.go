package mpfec_test

import (
	"bytes"
	"errors"
	"testing"

	mpfec "github.com/klingenchristopher/5G-FEC"
)

func goodPath(id mpfec.PathID) mpfec.PathState {
	return mpfec.PathState{PathID: id, RTTMs: 20, LossRate: 0.01, BandwidthMbps: 100}
}

func newTestController(t *testing.T, cfg mpfec.Config, paths ...mpfec.PathState) *mpfec.Controller {
	t.Helper()
	c, err := mpfec.NewController(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		c.AddPath(p)
	}
	return c
}

func TestSendStreamDataPadsTrailingBlock(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 4, DefaultM: 2, BlockSize: 1200},
		goodPath(0), goodPath(1))

	metas, err := c.SendStreamData(make([]byte, 3000), 0)
	if err != nil {
		t.Fatal(err)
	}
	// 3000 bytes fill only 3 of the 4 source slots; nothing seals yet
	if len(metas) != 0 {
		t.Fatalf("premature emission of %d frames", len(metas))
	}
	metas, err = c.Flush()
	if err != nil {
		t.Fatal(err)
	}
	var source, repair int
	for _, m := range metas {
		if m.IsRepair {
			repair++
		} else {
			source++
		}
	}
	if source != 4 {
		t.Errorf("emitted %d source frames, want 4", source)
	}
	if repair != 2 {
		t.Errorf("emitted %d repair frames, want 2", repair)
	}
	// the fourth source block is all padding
	pad := metas[3].Frame.Payload
	if !bytes.Equal(pad, make([]byte, 1200)) {
		t.Error("zero-padded source block is not zero")
	}
}

func TestPacketNumbersMonotonicGapFree(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100},
		goodPath(0), goodPath(1))

	perPath := make(map[mpfec.PathID][]mpfec.PacketNumber)
	for i := 0; i < 5; i++ {
		metas, err := c.SendStreamData(make([]byte, 200), 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range metas {
			perPath[m.PathID] = append(perPath[m.PathID], m.PacketNumber)
		}
	}
	if len(perPath) == 0 {
		t.Fatal("nothing emitted")
	}
	for path, pns := range perPath {
		for i, pn := range pns {
			if pn != mpfec.PacketNumber(i+1) {
				t.Fatalf("path %d: packet number %d at position %d, want %d", path, pn, i, i+1)
			}
		}
	}
}

func TestSourceThenRepairEmitOrder(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 3, DefaultM: 2, BlockSize: 50},
		goodPath(0), goodPath(1))

	metas, err := c.SendStreamData(make([]byte, 150), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 5 {
		t.Fatalf("emitted %d frames, want 5", len(metas))
	}
	for i, m := range metas {
		wantRepair := i >= 3
		if m.IsRepair != wantRepair {
			t.Errorf("frame %d: IsRepair = %v, want %v", i, m.IsRepair, wantRepair)
		}
		if got := int(m.Frame.BlockIndex); got != i {
			t.Errorf("frame %d carries block index %d", i, got)
		}
	}
}

func TestSendFailsWithNoPathsAvailable(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100},
		mpfec.PathState{PathID: 0, RTTMs: 20, LossRate: 0.9, BandwidthMbps: 100},
		mpfec.PathState{PathID: 1, RTTMs: 20, LossRate: 0.9, BandwidthMbps: 100})

	if _, err := c.SendStreamData(make([]byte, 200), 0); !errors.Is(err, mpfec.ErrNoPathsAvailable) {
		t.Errorf("SendStreamData error = %v, want ErrNoPathsAvailable", err)
	}
}

func TestEndToEndRecovery(t *testing.T) {
	cfg := mpfec.Config{DefaultK: 4, DefaultM: 2, BlockSize: 100}
	sender := newTestController(t, cfg, goodPath(0), goodPath(1))
	receiver := newTestController(t, cfg)

	payload := make([]byte, 400)
	for i := range payload {
		payload[i] = byte(i)
	}
	metas, err := sender.SendStreamData(payload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 6 {
		t.Fatalf("emitted %d frames, want 6", len(metas))
	}

	// drop two source frames; the repair blocks must cover them
	var recovered [][]byte
	for i, m := range metas {
		if i == 1 || i == 2 {
			continue
		}
		blocks, err := receiver.ReceiveFECFrame(m.Frame.Serialize(), m.PathID)
		if err != nil {
			t.Fatal(err)
		}
		if blocks != nil {
			recovered = blocks
		}
	}
	if len(recovered) != 4 {
		t.Fatalf("recovered %d blocks, want 4", len(recovered))
	}
	var got []byte
	for _, b := range recovered {
		got = append(got, b...)
	}
	if !bytes.Equal(got, payload) {
		t.Error("recovered payload differs from original")
	}
	if stats := receiver.GetStatistics(); stats.PacketsRecovered != 2 {
		t.Errorf("PacketsRecovered = %d, want 2", stats.PacketsRecovered)
	}
}

func TestReceiveDropsGarbage(t *testing.T) {
	c := newTestController(t, mpfec.Config{})
	blocks, err := c.ReceiveFECFrame([]byte{1, 2, 3}, 0)
	if err != nil {
		t.Fatalf("garbage frame surfaced error %v", err)
	}
	if blocks != nil {
		t.Error("garbage frame produced blocks")
	}
	if stats := c.GetStatistics(); stats.FramesDropped != 1 {
		t.Errorf("FramesDropped = %d, want 1", stats.FramesDropped)
	}
}

func TestFECDisabledPassthrough(t *testing.T) {
	sender := newTestController(t, mpfec.Config{}, goodPath(0))
	receiver := newTestController(t, mpfec.Config{})
	sender.SetFECEnabled(false)

	payload := []byte("hello over the unprotected path")
	metas, err := sender.SendStreamData(payload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(metas))
	}
	m := metas[0]
	if m.IsRepair || m.Frame.GroupID != 0 || m.PathID != 0 {
		t.Errorf("unexpected passthrough meta %+v", m)
	}
	blocks, err := receiver.ReceiveFECFrame(m.Frame.Serialize(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || !bytes.Equal(blocks[0], payload) {
		t.Error("passthrough payload mangled")
	}
}

func TestAdaptiveRateShiftsUpUnderLoss(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 10, DefaultM: 1, BlockSize: 100},
		mpfec.PathState{PathID: 0, RTTMs: 20, LossRate: 0.02, BandwidthMbps: 100},
		goodPath(1))

	c.UpdatePathState(mpfec.PathState{PathID: 0, RTTMs: 20, LossRate: 0.18, BandwidthMbps: 100})
	c.UpdatePathState(mpfec.PathState{PathID: 1, RTTMs: 20, LossRate: 0.18, BandwidthMbps: 100})
	if _, err := c.PeriodicUpdate(); err != nil {
		t.Fatal(err)
	}
	d, ok := c.Decision()
	if !ok {
		t.Fatal("no decision after periodic update")
	}
	if ratio := float64(d.M) / float64(d.K); ratio <= 0.3 {
		t.Errorf("m/k = %g after loss shift, want > 0.3", ratio)
	}
}

func TestStatisticsCounters(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100},
		goodPath(0), goodPath(1))

	if _, err := c.SendStreamData(make([]byte, 400), 0); err != nil {
		t.Fatal(err)
	}
	stats := c.GetStatistics()
	if stats.FECGroupsCreated != 2 {
		t.Errorf("FECGroupsCreated = %d, want 2", stats.FECGroupsCreated)
	}
	if stats.SourcePacketsSent != 4 {
		t.Errorf("SourcePacketsSent = %d, want 4", stats.SourcePacketsSent)
	}
	if stats.RepairPacketsSent != 2 {
		t.Errorf("RepairPacketsSent = %d, want 2", stats.RepairPacketsSent)
	}
	if stats.TotalPacketsSent != 6 {
		t.Errorf("TotalPacketsSent = %d, want 6", stats.TotalPacketsSent)
	}
	if stats.CurrentRedundancyRate != 0.5 {
		t.Errorf("CurrentRedundancyRate = %g, want 0.5", stats.CurrentRedundancyRate)
	}
}

func TestStaleAckIgnored(t *testing.T) {
	c := newTestController(t, mpfec.Config{}, goodPath(0))
	// must not panic or change the send counters; the loss report still
	// lands in path 0's loss window
	c.OnAck(0, 999, 20_000)
	c.OnPacketLost(0, 999)
	if stats := c.GetStatistics(); stats.TotalPacketsSent != 0 {
		t.Error("stale feedback changed counters")
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := mpfec.NewController(mpfec.Config{DefaultK: 200, DefaultM: 60}); err == nil {
		t.Error("oversized rate accepted")
	}
	if _, err := mpfec.NewController(mpfec.Config{DefaultK: 1, DefaultM: 0}); err == nil {
		t.Error("m=0 accepted")
	}
	if _, err := mpfec.NewController(mpfec.Config{BlockSize: -1}); err == nil {
		t.Error("negative block size accepted")
	}
}

func TestUpdateLossCorrelationFeedsRepairSelection(t *testing.T) {
	c := newTestController(t,
		mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100},
		goodPath(0), goodPath(1), goodPath(2))
	c.UpdateLossCorrelation(0, 1, 0.9)
	c.UpdateLossCorrelation(0, 2, 0.1)

	metas, err := c.SendStreamData(make([]byte, 200), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range metas {
		if m.IsRepair && m.PathID != 2 {
			t.Errorf("repair frame dispatched on path %d, want 2", m.PathID)
		}
	}
}
