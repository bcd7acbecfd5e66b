package reinforcement

import (
	"errors"
	"fmt"

	"playground/models"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// Environment is the grid world the agent acts in. ApplyAction is the only place where
// the agent exchanges information with it during an episode.
type Environment interface {
	GridShape() (width, height int)
	// GiveInitialPosition places the agent; ok is false if no start position exists.
	GiveInitialPosition() (s models.State, ok bool)
	ApplyAction(s models.State, a models.Action) (reward float64, next models.State, terminal bool)
	// RemoveAgent vacates the agent's cell and returns its position afterward, if any.
	RemoveAgent() (s models.State, ok bool)
}

// ErrNoInitialPosition is fatal: the environment cannot start an episode.
var ErrNoInitialPosition = errors.New("no starting point found")

// Agent drives the episode lifecycle one tick at a time. Each tick performs exactly one of,
// in priority order: an update from memory, finishing the episode, starting an episode,
// a planning update, or taking an action. It is not safe for concurrent use; the value
// store it shares with views is.
type Agent struct {
	env      Environment
	cfg      *Config
	store    *ValueStore
	memory   *Memory
	engine   *UpdateEngine
	behavior *EpsilonGreedy
	target   *EpsilonGreedy
	planner  Planner
	log      zerolog.Logger

	state           *models.State
	episodeFinished bool
	episodeReturn   float64
	episodeReturns  []float64
	plannings       int

	hasMadeExploratoryMove bool
	lastAction             models.Action
	lastUpdate             UpdateResult
	ticks                  int
}

// AgentOption configures optional Agent collaborators.
type AgentOption func(*Agent)

// WithPlanner replaces the default no-op planner.
func WithPlanner(planner Planner) AgentOption {
	return func(agent *Agent) {
		agent.planner = planner
	}
}

// NewAgent validates cfg and builds an agent over env. All randomness (value
// initialization, both policies) flows from src; a seeded src makes tick sequences
// reproducible.
func NewAgent(
	env Environment,
	cfg *Config,
	src rand.Source,
	logger zerolog.Logger,
	opts ...AgentOption,
) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	// The agent is given the shape of the grid and that the action space is the same for
	// every state; it knows nothing else about the environment.
	width, height := env.GridShape()
	rng := rand.New(src)
	store := NewValueStore(width, height, cfg.InitialValueMean, cfg.InitialValueSigma, src)
	memory := NewMemory()

	agent := &Agent{
		env:      env,
		cfg:      cfg,
		store:    store,
		memory:   memory,
		engine:   NewUpdateEngine(store, memory),
		behavior: NewEpsilonGreedy(store, rng, cfg.BehaviorEpsilon, cfg.BehaviorEpsilonDecay),
		target:   NewEpsilonGreedy(store, rng, cfg.TargetEpsilon, cfg.TargetEpsilonDecay),
		planner:  NopPlanner{},
		log:      logger,
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent, nil
}

// Tick performs one operation and returns which. The only error is fatal:
// ErrNoInitialPosition when an episode cannot start.
func (agent *Agent) Tick() (models.Signal, error) {
	signal, err := agent.step()
	if err == nil {
		agent.ticks++
	}
	return signal, err
}

func (agent *Agent) step() (models.Signal, error) {
	switch {
	case agent.engine.Eligible(agent.cfg.StepHorizon, agent.episodeFinished):
		agent.lastUpdate = agent.engine.Update(agent.cfg)
		return models.EXPERIENCE_UPDATE, nil
	case agent.episodeFinished:
		agent.finishEpisode()
		return models.EPISODE_FINISHED, nil
	case agent.state == nil:
		if err := agent.startEpisode(); err != nil {
			return models.EPISODE_STARTED, err
		}
		return models.EPISODE_STARTED, nil
	case agent.plannings < agent.cfg.PlanningBudget:
		agent.planner.Plan()
		agent.plannings++
		return models.PLANNING_UPDATE, nil
	default:
		agent.takeAction()
		return models.ACTION_TAKEN, nil
	}
}

func (agent *Agent) startEpisode() error {
	start, ok := agent.env.GiveInitialPosition()
	if !ok {
		agent.log.Error().Msg("environment has no initial position")
		return fmt.Errorf("start episode %d: %w", len(agent.episodeReturns)+1, ErrNoInitialPosition)
	}

	agent.state = &start
	agent.episodeReturn = 0
	agent.plannings = 0
	agent.engine.ResetTarget()
	agent.log.Debug().
		Int("episode", len(agent.episodeReturns)+1).
		Stringer("start", start).
		Msg("episode started")
	return nil
}

func (agent *Agent) finishEpisode() {
	agent.episodeReturns = append(agent.episodeReturns, agent.episodeReturn)
	// So the agent isn't displayed as exploratory at the next start.
	agent.hasMadeExploratoryMove = false
	if pos, ok := agent.env.RemoveAgent(); ok {
		agent.state = &pos
	} else {
		agent.state = nil
	}
	agent.episodeFinished = false
	agent.log.Debug().
		Int("episode", len(agent.episodeReturns)).
		Float64("return", agent.episodeReturn).
		Msg("episode finished")
}

func (agent *Agent) takeAction() {
	agent.plannings = 0
	strategy := StrategyOf(agent.cfg)

	action, exploratory := agent.behaviorAction(strategy)
	reward, next, terminal := agent.env.ApplyAction(*agent.state, action)
	// Record the flag of the draw that produced this action. For a reused target action
	// that is the earlier target draw, not anything drawn this tick.
	agent.hasMadeExploratoryMove = exploratory
	agent.lastAction = action

	agent.memory.Memorize(*agent.state, action, reward)
	agent.episodeReturn += reward
	// Must happen after memorizing and before computing the target.
	agent.state = &next
	agent.episodeFinished = terminal
	agent.engine.ComputeTarget(next, terminal, strategy, agent.behavior, agent.target)

	agent.behavior.Decay()
	agent.target.Decay()
}

// behaviorAction reuses the cached target action when on-policy, so the executed action is
// the one whose value the pending update target references. Otherwise (off-policy, an
// expectation target, or no target yet this episode) it draws from the behavior policy.
func (agent *Agent) behaviorAction(strategy UpdateStrategy) (models.Action, bool) {
	if strategy.OnPolicy {
		if action, exploratory, ok := agent.engine.CachedAction(); ok {
			return action, exploratory
		}
	}
	return agent.behavior.ChooseAction(*agent.state)
}

// Reconfigure validates and installs a new config between ticks. A policy is reset only when
// its epsilon or decay rate changed. Values, counts and memory are kept.
func (agent *Agent) Reconfigure(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	prev := agent.cfg
	agent.cfg = cfg.Clone()
	if cfg.BehaviorEpsilon != prev.BehaviorEpsilon || cfg.BehaviorEpsilonDecay != prev.BehaviorEpsilonDecay {
		agent.behavior.Reset(cfg.BehaviorEpsilon, cfg.BehaviorEpsilonDecay)
	}
	if cfg.TargetEpsilon != prev.TargetEpsilon || cfg.TargetEpsilonDecay != prev.TargetEpsilonDecay {
		agent.target.Reset(cfg.TargetEpsilon, cfg.TargetEpsilonDecay)
	}
	agent.log.Info().
		Str("algorithm", StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon)).
		Msg("agent reconfigured")
	return nil
}

// Snapshot returns the read-only view data for the current tick.
func (agent *Agent) Snapshot() models.Snapshot {
	snapshot := models.Snapshot{
		Exploratory: agent.hasMadeExploratoryMove,
		Episode:     len(agent.episodeReturns),
		Tick:        agent.ticks,
	}
	if agent.state != nil {
		pos := *agent.state
		snapshot.AgentPosition = &pos
	}
	return snapshot
}

// Config returns a copy of the active config.
func (agent *Agent) Config() *Config {
	return agent.cfg.Clone()
}

// EpisodeReturns returns a copy of the archived returns of finished episodes.
func (agent *Agent) EpisodeReturns() []float64 {
	return append([]float64(nil), agent.episodeReturns...)
}

// State returns the agent's current state, if it is on the grid.
func (agent *Agent) State() (models.State, bool) {
	if agent.state == nil {
		return models.State{}, false
	}
	return *agent.state, true
}

func (agent *Agent) Store() *ValueStore {
	return agent.store
}

func (agent *Agent) Engine() *UpdateEngine {
	return agent.engine
}

func (agent *Agent) Memory() *Memory {
	return agent.memory
}

// Epsilons returns the current behavior and target epsilons.
func (agent *Agent) Epsilons() (behavior, target float64) {
	return agent.behavior.Epsilon(), agent.target.Epsilon()
}

// LastAction returns the action executed by the most recent ACTION_TAKEN tick.
func (agent *Agent) LastAction() models.Action {
	return agent.lastAction
}

// LastUpdate returns the result of the most recent EXPERIENCE_UPDATE tick.
func (agent *Agent) LastUpdate() UpdateResult {
	return agent.lastUpdate
}

// EpisodeFinished reports whether the environment signaled termination and the
// episode has not been finished yet.
func (agent *Agent) EpisodeFinished() bool {
	return agent.episodeFinished
}
