package mpfec

import (
	"github.com/klingenchristopher/5G-FEC/internal/oco"
	"github.com/klingenchristopher/5G-FEC/internal/protocol"
	"github.com/klingenchristopher/5G-FEC/internal/scheduler"
)

// A PathID identifies one path of the multipath transport.
type PathID = protocol.PathID

// A PacketNumber is a per-path packet number.
type PacketNumber = protocol.PacketNumber

// A GroupID identifies one FEC encoding group.
type GroupID = protocol.GroupID

// PathState is the per-path quality snapshot fed to AddPath and
// UpdatePathState.
type PathState = scheduler.PathState

// FECSchemeID selects the erasure code.
type FECSchemeID = protocol.FECSchemeID

const (
	XORFECScheme         = protocol.XORFECScheme
	ReedSolomonFECScheme = protocol.ReedSolomonFECScheme
)

// Strategy is the coarse redundancy policy passed to SetFECStrategy.
type Strategy = oco.Strategy

const (
	StrategyAggressive   = oco.StrategyAggressive
	StrategyBalanced     = oco.StrategyBalanced
	StrategyConservative = oco.StrategyConservative
	StrategyDynamic      = oco.StrategyDynamic
)

// RedundancyDecision is the adaptive controller's current (k, m) and path
// preference, exposed read-only through Controller.Decision.
type RedundancyDecision = oco.RedundancyDecision
