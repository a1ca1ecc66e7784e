package oco

// Strategy is the coarse redundancy policy constraining the OCO learner's
// rate range.
type Strategy int

const (
	// StrategyAggressive trades bandwidth for recovery on hostile links.
	StrategyAggressive Strategy = iota
	// StrategyBalanced is the default middle ground.
	StrategyBalanced
	// StrategyConservative keeps overhead minimal on clean links.
	StrategyConservative
	// StrategyDynamic hands the full range to the learner; it is only ever
	// host-selected, never chosen automatically.
	StrategyDynamic
)

func (s Strategy) String() string {
	switch s {
	case StrategyAggressive:
		return "aggressive"
	case StrategyBalanced:
		return "balanced"
	case StrategyConservative:
		return "conservative"
	case StrategyDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// RedundancyRange returns the (min, max) redundancy rate for the strategy.
func (s Strategy) RedundancyRange() (float64, float64) {
	switch s {
	case StrategyAggressive:
		return 0.4, 1.0
	case StrategyConservative:
		return 0.1, 0.3
	case StrategyDynamic:
		return 0.1, 1.0
	default:
		return 0.2, 0.6
	}
}

const (
	aggressiveLossThreshold   = 0.15
	conservativeLossThreshold = 0.02
)

// SelectStrategy picks a strategy from the current link metrics: any path
// losing more than 15% forces aggressive coverage, uniformly clean paths
// allow conservative overhead.
func SelectStrategy(metrics []LinkMetrics) Strategy {
	if len(metrics) == 0 {
		return StrategyBalanced
	}
	var maxLoss, sumLoss float64
	for _, m := range metrics {
		if m.LossRate > maxLoss {
			maxLoss = m.LossRate
		}
		sumLoss += m.LossRate
	}
	if maxLoss > aggressiveLossThreshold {
		return StrategyAggressive
	}
	if sumLoss/float64(len(metrics)) < conservativeLossThreshold {
		return StrategyConservative
	}
	return StrategyBalanced
}
