package reinforcement

import (
	"errors"
	"fmt"
	"strings"
)

// MONTE_CARLO is the step horizon sentinel meaning "wait for the terminal state": updates
// only run once an episode finishes, using the full episode return.
const MONTE_CARLO = -1

// Config holds the agent's algorithmic parameters. It replaces a set of loose mutable cells:
// the agent holds a pointer to one validated Config, and the driver may swap in a new one
// between ticks via Agent.Reconfigure.
type Config struct {
	// LearningRate is the fixed step size, ignored when DynamicAlpha is set.
	LearningRate float64 `yaml:"learningRate" mapstructure:"learningRate" json:"learningRate"`
	// DynamicAlpha selects the count-based step size 1/N(s,a).
	DynamicAlpha bool `yaml:"dynamicAlpha" mapstructure:"dynamicAlpha" json:"dynamicAlpha"`
	// Discount is gamma, the weight of future rewards.
	Discount float64 `yaml:"discount" mapstructure:"discount" json:"discount"`
	// StepHorizon is n in n-step methods, or MONTE_CARLO.
	StepHorizon int `yaml:"stepHorizon" mapstructure:"stepHorizon" json:"stepHorizon"`
	// PlanningBudget is the number of planning ticks run before each action.
	PlanningBudget int `yaml:"planningBudget" mapstructure:"planningBudget" json:"planningBudget"`
	// OnPolicy derives update targets from the behavior policy instead of the target policy.
	OnPolicy bool `yaml:"onPolicy" mapstructure:"onPolicy" json:"onPolicy"`
	// UpdateByExpectation bootstraps from the policy's expected action value instead of a sample.
	UpdateByExpectation bool `yaml:"updateByExpectation" mapstructure:"updateByExpectation" json:"updateByExpectation"`

	BehaviorEpsilon      float64 `yaml:"behaviorEpsilon" mapstructure:"behaviorEpsilon" json:"behaviorEpsilon"`
	BehaviorEpsilonDecay float64 `yaml:"behaviorEpsilonDecay" mapstructure:"behaviorEpsilonDecay" json:"behaviorEpsilonDecay"`
	TargetEpsilon        float64 `yaml:"targetEpsilon" mapstructure:"targetEpsilon" json:"targetEpsilon"`
	TargetEpsilonDecay   float64 `yaml:"targetEpsilonDecay" mapstructure:"targetEpsilonDecay" json:"targetEpsilonDecay"`

	// Initial action values are drawn from Normal(InitialValueMean, InitialValueSigma).
	InitialValueMean  float64 `yaml:"initialValueMean" mapstructure:"initialValueMean" json:"initialValueMean"`
	InitialValueSigma float64 `yaml:"initialValueSigma" mapstructure:"initialValueSigma" json:"initialValueSigma"`
}

// DefaultConfig returns one-step on-policy SARSA with a little exploration.
func DefaultConfig() *Config {
	return &Config{
		LearningRate:         0.1,
		Discount:             1.0,
		StepHorizon:          1,
		OnPolicy:             true,
		BehaviorEpsilon:      0.1,
		BehaviorEpsilonDecay: 1.0,
		TargetEpsilon:        0.0,
		TargetEpsilonDecay:   1.0,
	}
}

// Clone returns a copy of the config, so callers can edit it without touching a live agent.
func (cfg *Config) Clone() *Config {
	clone := *cfg
	return &clone
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks parameter domains. Non-finite rewards or learning rates are not guarded.
func (cfg *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if !cfg.DynamicAlpha && (cfg.LearningRate <= 0 || cfg.LearningRate > 1) {
		return invalid("learningRate must be in (0,1], got %v", cfg.LearningRate)
	}
	if cfg.Discount < 0 || cfg.Discount > 1 {
		return invalid("discount must be in [0,1], got %v", cfg.Discount)
	}
	if cfg.StepHorizon == 0 || cfg.StepHorizon < MONTE_CARLO {
		return invalid("stepHorizon must be >= 1 or %d (monte carlo), got %d", MONTE_CARLO, cfg.StepHorizon)
	}
	if cfg.PlanningBudget < 0 {
		return invalid("planningBudget must be non-negative, got %d", cfg.PlanningBudget)
	}
	for name, eps := range map[string]float64{
		"behaviorEpsilon":      cfg.BehaviorEpsilon,
		"behaviorEpsilonDecay": cfg.BehaviorEpsilonDecay,
		"targetEpsilon":        cfg.TargetEpsilon,
		"targetEpsilonDecay":   cfg.TargetEpsilonDecay,
	} {
		if eps < 0 || eps > 1 {
			return invalid("%s must be in [0,1], got %v", name, eps)
		}
	}
	if cfg.InitialValueSigma < 0 {
		return invalid("initialValueSigma must be non-negative, got %v", cfg.InitialValueSigma)
	}
	return nil
}

// IsMonteCarlo reports whether updates wait for episode termination.
func (cfg *Config) IsMonteCarlo() bool {
	return cfg.StepHorizon == MONTE_CARLO
}

// Algorithm names accepted by ApplyAlgorithm.
const (
	SARSA          = "sarsa"
	NSTEP_SARSA    = "nstep_sarsa"
	QLEARNING      = "qlearning"
	EXPECTED_SARSA = "expected_sarsa"
	MONTECARLO     = "montecarlo"
)

// ErrUnknownAlgorithm is returned by ApplyAlgorithm for unrecognized names.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// ApplyAlgorithm sets the horizon/policy/target switches of a textbook algorithm, leaving
// rates and epsilons alone. nstep_sarsa keeps the configured horizon if it is already n > 1,
// otherwise it uses n = 4.
func (cfg *Config) ApplyAlgorithm(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SARSA:
		cfg.StepHorizon = 1
		cfg.OnPolicy = true
		cfg.UpdateByExpectation = false
	case NSTEP_SARSA:
		if cfg.StepHorizon <= 1 {
			cfg.StepHorizon = 4
		}
		cfg.OnPolicy = true
		cfg.UpdateByExpectation = false
	case QLEARNING:
		cfg.StepHorizon = 1
		cfg.OnPolicy = false
		cfg.UpdateByExpectation = false
		cfg.TargetEpsilon = 0
	case EXPECTED_SARSA:
		if cfg.StepHorizon == MONTE_CARLO {
			cfg.StepHorizon = 1
		}
		cfg.UpdateByExpectation = true
	case MONTECARLO:
		cfg.StepHorizon = MONTE_CARLO
		cfg.OnPolicy = true
		cfg.UpdateByExpectation = false
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return nil
}
