package reinforcement

// Planner performs one model-based planning update per call. The agent calls it up to
// Config.PlanningBudget times between environment steps. Plan must not fail.
type Planner interface {
	Plan()
}

// NopPlanner is the default Planner; the agent has no model to plan with.
type NopPlanner struct{}

func (NopPlanner) Plan() {}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func()

func (fn PlannerFunc) Plan() {
	fn()
}
