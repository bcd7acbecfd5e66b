package reinforcement

import (
	"playground/models"
)

// Memory is the FIFO window of recent transitions used to form n-step returns.
// Depth 1 is the oldest held transition; depth grows toward the newest.
// Its size is bounded by the agent, which drains it whenever it reaches the step
// horizon, or only at episode termination in monte carlo mode.
type Memory struct {
	transitions []models.Transition
}

func NewMemory() *Memory {
	return &Memory{}
}

// Memorize enqueues a transition as the newest entry.
func (mem *Memory) Memorize(s models.State, a models.Action, reward float64) {
	mem.transitions = append(mem.transitions, models.Transition{
		State:  s,
		Action: a,
		Reward: reward,
	})
}

func (mem *Memory) Size() int {
	return len(mem.transitions)
}

// DiscountedRewardSum returns sum over held transitions of discount^(depth-1) * reward.
func (mem *Memory) DiscountedRewardSum(discount float64) (sum float64) {
	weight := 1.0
	for _, t := range mem.transitions {
		sum += weight * t.Reward
		weight *= discount
	}
	return
}

// PopOldest removes the oldest transition and returns its state and action; its reward
// is expected to have been consumed by DiscountedRewardSum already.
// Popping an empty memory is a programming error and panics.
func (mem *Memory) PopOldest() (models.State, models.Action) {
	oldest := mem.transitions[0]
	mem.transitions[0] = models.Transition{}
	mem.transitions = mem.transitions[1:]
	if len(mem.transitions) == 0 {
		// Release the backing array once drained so it doesn't creep forward forever.
		mem.transitions = nil
	}
	return oldest.State, oldest.Action
}

// Transitions returns a copy of the held transitions, oldest first.
func (mem *Memory) Transitions() []models.Transition {
	return append([]models.Transition(nil), mem.transitions...)
}

func (mem *Memory) Clear() {
	mem.transitions = nil
}
