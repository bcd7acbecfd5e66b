package reinforcement

import (
	"playground/models"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Policy is the capability set shared by the behavior and target policies.
type Policy interface {
	// ChooseAction returns an action for s, and whether the draw was exploratory.
	ChooseAction(s models.State) (action models.Action, exploratory bool)
	// ExpectedValue returns the expectation of Q(s,.) under the policy's action distribution.
	ExpectedValue(s models.State) float64
}

// EpsilonGreedy selects a uniformly random action with probability epsilon, and otherwise
// a uniformly random member of the greedy set. Behavior and target policies are two
// instances of this type, differing only in their epsilon and decay rate.
type EpsilonGreedy struct {
	store     *ValueStore
	rng       *rand.Rand
	epsilon   float64
	decayRate float64
}

// NewEpsilonGreedy returns a policy reading action values from store. The rng is shared
// with the rest of the agent so that a single seed reproduces a whole run.
func NewEpsilonGreedy(store *ValueStore, rng *rand.Rand, epsilon, decayRate float64) *EpsilonGreedy {
	return &EpsilonGreedy{
		store:     store,
		rng:       rng,
		epsilon:   epsilon,
		decayRate: decayRate,
	}
}

func (p *EpsilonGreedy) ChooseAction(s models.State) (models.Action, bool) {
	if p.rng.Float64() < p.epsilon {
		return models.ACTIONS[p.rng.Intn(models.NUM_ACTIONS)], true
	}
	greedy := p.store.GreedySet(s)
	return greedy[p.rng.Intn(len(greedy))], false
}

// ExpectedValue weights each non-greedy action by eps/m and each greedy action by
// eps/m + (1-eps)/g, for m actions of which g are greedy.
func (p *EpsilonGreedy) ExpectedValue(s models.State) float64 {
	values := p.store.Values(s)
	greedy := p.store.GreedySet(s)

	m := float64(len(values))
	probs := make([]float64, len(values))
	for i := range probs {
		probs[i] = p.epsilon / m
	}
	greedyProb := (1 - p.epsilon) / float64(len(greedy))
	for _, action := range greedy {
		probs[action] += greedyProb
	}
	return floats.Dot(probs, values)
}

// Decay multiplies epsilon by the decay rate; it is called once per environment step.
func (p *EpsilonGreedy) Decay() {
	p.epsilon *= p.decayRate
}

func (p *EpsilonGreedy) Epsilon() float64 {
	return p.epsilon
}

// Reset replaces epsilon and the decay rate, e.g. after a reconfiguration.
func (p *EpsilonGreedy) Reset(epsilon, decayRate float64) {
	p.epsilon = epsilon
	p.decayRate = decayRate
}
