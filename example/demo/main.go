// Command demo runs two FEC controllers against each other over a lossy
// in-memory transport: one endpoint streams data across two simulated paths
// with asymmetric loss, the other recovers it, and both print their counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/francoispqt/gojay"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mpfec "github.com/klingenchristopher/5G-FEC"
)

type lossyTransport struct {
	peer      *lossyTransport
	lossRates map[mpfec.PathID]float64
	rng       *rand.Rand

	onReceive   func(mpfec.PathID, []byte)
	onPathEvent func(mpfec.PathID, mpfec.PathEvent)
}

func (t *lossyTransport) Send(path mpfec.PathID, payload []byte) (int, error) {
	if t.rng.Float64() < t.lossRates[path] {
		return 0, nil
	}
	if t.peer.onReceive != nil {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		t.peer.onReceive(path, buf)
	}
	return len(payload), nil
}

func (t *lossyTransport) AddPath(local, remote string) (mpfec.PathID, error) {
	return 0, fmt.Errorf("demo transport has a fixed path set")
}

func (t *lossyTransport) RemovePath(path mpfec.PathID) error { return nil }

func (t *lossyTransport) SetReceiveCallback(cb func(mpfec.PathID, []byte)) {
	t.onReceive = cb
}

func (t *lossyTransport) SetPathEventCallback(cb func(mpfec.PathID, mpfec.PathEvent)) {
	t.onPathEvent = cb
}

func main() {
	duration := flag.Duration("duration", 3*time.Second, "how long to stream")
	loss0 := flag.Float64("loss0", 0.15, "loss rate on path 0")
	loss1 := flag.Float64("loss1", 0.02, "loss rate on path 1")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	lossRates := map[mpfec.PathID]float64{0: *loss0, 1: *loss1}
	left := &lossyTransport{lossRates: lossRates, rng: rng}
	right := &lossyTransport{lossRates: lossRates, rng: rng}
	left.peer, right.peer = right, left

	sender, err := mpfec.NewController(mpfec.Config{Logger: logger.Named("sender")})
	if err != nil {
		logger.Fatal("building sender", zap.Error(err))
	}
	receiver, err := mpfec.NewController(mpfec.Config{Logger: logger.Named("receiver")})
	if err != nil {
		logger.Fatal("building receiver", zap.Error(err))
	}

	for id, loss := range lossRates {
		state := mpfec.PathState{PathID: id, RTTMs: 20, LossRate: loss, BandwidthMbps: 100}
		sender.AddPath(state)
		receiver.AddPath(state)
	}
	sender.UpdateLossCorrelation(0, 1, 0.1)

	out := mpfec.NewDispatcher(sender, left, logger.Named("out"))
	in := mpfec.NewDispatcher(receiver, right, logger.Named("in"))

	var recoveredBytes int
	in.OnRecovered = func(payload []byte) { recoveredBytes += len(payload) }

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		payload := make([]byte, 4*1200)
		for {
			select {
			case <-ctx.Done():
				return out.Flush()
			case <-time.After(10 * time.Millisecond):
				rng.Read(payload)
				if err := out.Send(payload, 0); err != nil {
					logger.Warn("send failed", zap.Error(err))
				}
			}
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := out.Tick(); err != nil {
					logger.Warn("tick failed", zap.Error(err))
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		logger.Warn("stream ended", zap.Error(err))
	}

	for name, c := range map[string]*mpfec.Controller{"sender": sender, "receiver": receiver} {
		stats := c.GetStatistics()
		encoded, err := gojay.MarshalJSONObject(&stats)
		if err != nil {
			logger.Error("encoding statistics", zap.Error(err))
			continue
		}
		fmt.Printf("%s: %s\n", name, encoded)
	}
	fmt.Printf("recovered %d bytes at the receiver\n", recoveredBytes)
}
