package reinforcement

import (
	"math"

	"playground/models"
)

// cachedTarget is the bootstrap target computed for the newest transition. It is consumed
// by the next update and, for on-policy sampling, by the next behavior action.
type cachedTarget struct {
	action      models.Action
	hasAction   bool
	exploratory bool
	value       float64
	// terminal targets have value 0 by definition and never bootstrap.
	terminal bool
}

// UpdateResult describes one applied update, mostly for tests and telemetry.
type UpdateResult struct {
	State     models.State
	Action    models.Action
	Return    float64 // discounted reward sum over the memory window
	Bootstrap float64 // discount^n times the cached target value
	TDError   float64
	StepSize  float64
	Before    float64
	After     float64
}

// UpdateEngine computes n-step (or monte carlo) returns from the memory and applies
// bootstrapped TD updates to the value store. It also owns the visitation counts used by
// the count-based step size, which persist across episodes.
type UpdateEngine struct {
	store  *ValueStore
	memory *Memory
	visits [][][models.NUM_ACTIONS]int
	target cachedTarget
}

func NewUpdateEngine(store *ValueStore, memory *Memory) *UpdateEngine {
	width, height := store.Shape()
	visits := make([][][models.NUM_ACTIONS]int, width)
	for x := range visits {
		visits[x] = make([][models.NUM_ACTIONS]int, height)
	}
	return &UpdateEngine{
		store:  store,
		memory: memory,
		visits: visits,
		target: cachedTarget{terminal: true},
	}
}

// Eligible reports whether an update should run this tick: either the memory holds a full
// horizon of transitions (never true for monte carlo), or the episode just finished and
// the memory still needs flushing.
func (engine *UpdateEngine) Eligible(horizon int, episodeFinished bool) bool {
	size := engine.memory.Size()
	return (horizon >= 1 && size >= horizon) || (episodeFinished && size > 0)
}

// Update processes the oldest transition in memory:
//
//	Q(s,a) += alpha * (R + discount^n * target - Q(s,a))
//
// where R is the discounted reward sum of the memory window, and the processed
// transition is evicted from memory.
func (engine *UpdateEngine) Update(cfg *Config) UpdateResult {
	strategy := StrategyOf(cfg)

	ret := engine.memory.DiscountedRewardSum(cfg.Discount)
	s, a := engine.memory.PopOldest()
	before := engine.store.Get(s, a)

	// Terminal targets are zero by definition. Short-circuiting also keeps the monte
	// carlo sentinel horizon out of the power, where 0^-1 would poison the sum.
	bootstrap := 0.0
	if !engine.target.terminal {
		bootstrap = math.Pow(cfg.Discount, float64(cfg.StepHorizon)) * engine.target.value
	}
	tdError := ret + bootstrap - before

	if strategy.StepSize == COUNT_STEP {
		engine.visits[s.X][s.Y][a]++
	}
	stepSize := strategy.StepSizeFor(cfg.LearningRate, engine.visits[s.X][s.Y][a])

	after := before + stepSize*tdError
	engine.store.Set(s, a, after)

	return UpdateResult{
		State:     s,
		Action:    a,
		Return:    ret,
		Bootstrap: bootstrap,
		TDError:   tdError,
		StepSize:  stepSize,
		Before:    before,
		After:     after,
	}
}

// ComputeTarget caches the bootstrap target for the transition that led to next.
// It runs once per environment step, after the transition is memorized.
func (engine *UpdateEngine) ComputeTarget(
	next models.State,
	terminal bool,
	strategy UpdateStrategy,
	behavior, target Policy,
) {
	if terminal {
		engine.target = cachedTarget{terminal: true}
		return
	}

	policy := strategy.TargetPolicy(behavior, target)
	if strategy.Target == EXPECTED_TARGET {
		// No action is cached: were one kept, an on-policy agent switched to expectation
		// mid-episode would replay it forever and never change direction.
		engine.target = cachedTarget{value: policy.ExpectedValue(next)}
		return
	}

	action, exploratory := policy.ChooseAction(next)
	engine.target = cachedTarget{
		action:      action,
		hasAction:   true,
		exploratory: exploratory,
		value:       engine.store.Get(next, action),
	}
}

// CachedAction returns the sampled target action, if the last target was sample based.
func (engine *UpdateEngine) CachedAction() (action models.Action, exploratory bool, ok bool) {
	return engine.target.action, engine.target.exploratory, engine.target.hasAction
}

// CachedValue returns the cached target value, zero for terminal targets.
func (engine *UpdateEngine) CachedValue() float64 {
	return engine.target.value
}

// ResetTarget discards the cached target at episode start.
func (engine *UpdateEngine) ResetTarget() {
	engine.target = cachedTarget{terminal: true}
}

// Visits returns the number of count-based updates applied to (s,a).
func (engine *UpdateEngine) Visits(s models.State, a models.Action) int {
	return engine.visits[s.X][s.Y][a]
}
