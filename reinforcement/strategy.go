package reinforcement

import "fmt"

// TargetKind selects how the bootstrap value of the next state is formed.
type TargetKind int

const (
	// SAMPLE_TARGET bootstraps from Q(s', a') for one sampled a'.
	SAMPLE_TARGET TargetKind = iota
	// EXPECTED_TARGET bootstraps from the policy's expectation over Q(s', .).
	EXPECTED_TARGET
)

// StepSizeKind selects the learning rate of an update.
type StepSizeKind int

const (
	FIXED_STEP StepSizeKind = iota
	// COUNT_STEP uses 1/N(s,a), N being the number of updates of (s,a) so far.
	COUNT_STEP
)

// UpdateStrategy is the combination of the three independent update switches. The step
// horizon is the fourth switch but it shapes the memory window, not the update itself.
type UpdateStrategy struct {
	Target   TargetKind
	OnPolicy bool
	StepSize StepSizeKind
}

// StrategyOf resolves the strategy from a config, once per target computation or update.
func StrategyOf(cfg *Config) UpdateStrategy {
	strategy := UpdateStrategy{
		Target:   SAMPLE_TARGET,
		OnPolicy: cfg.OnPolicy,
		StepSize: FIXED_STEP,
	}
	if cfg.UpdateByExpectation {
		strategy.Target = EXPECTED_TARGET
	}
	if cfg.DynamicAlpha {
		strategy.StepSize = COUNT_STEP
	}
	return strategy
}

// TargetPolicy returns the policy whose choices define the update target.
func (strategy UpdateStrategy) TargetPolicy(behavior, target Policy) Policy {
	if strategy.OnPolicy {
		return behavior
	}
	return target
}

// StepSizeFor returns the learning rate for an update given the visit count of the updated
// pair, which must already include the current update.
func (strategy UpdateStrategy) StepSizeFor(learningRate float64, visits int) float64 {
	if strategy.StepSize == COUNT_STEP {
		return 1 / float64(visits)
	}
	return learningRate
}

// Name returns the textbook name of the algorithm the switches amount to. Off-policy
// sampling is only called q-learning when the target policy is purely greedy.
func (strategy UpdateStrategy) Name(horizon int, targetEpsilon float64) string {
	var name string
	switch {
	case strategy.Target == EXPECTED_TARGET && horizon == 1:
		name = "expected sarsa"
	case strategy.Target == EXPECTED_TARGET && horizon == MONTE_CARLO:
		// Bootstrap is always zero here, the expectation never matters.
		name = "monte carlo"
	case strategy.Target == EXPECTED_TARGET:
		name = fmt.Sprintf("%d-step expected sarsa", horizon)
	case horizon == MONTE_CARLO && strategy.OnPolicy:
		name = "monte carlo"
	case horizon == MONTE_CARLO:
		name = "off-policy monte carlo"
	case !strategy.OnPolicy && targetEpsilon == 0 && horizon == 1:
		name = "q-learning"
	case !strategy.OnPolicy && targetEpsilon == 0:
		name = fmt.Sprintf("%d-step q-learning", horizon)
	case !strategy.OnPolicy:
		name = fmt.Sprintf("%d-step off-policy sarsa", horizon)
	case horizon == 1:
		name = "sarsa"
	default:
		name = fmt.Sprintf("%d-step sarsa", horizon)
	}
	if strategy.StepSize == COUNT_STEP {
		name += " (1/n step size)"
	}
	return name
}
