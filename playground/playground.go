// playground drives an agent through its ticks on a timer, the way an interactive
// gridworld session would: a batch of ticks per timer tick, then a snapshot for views.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"playground/atomic_float"
	"playground/models"
	"playground/reinforcement"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
)

// Options are the driver parameters of a run, as opposed to the agent's algorithmic ones.
type Options struct {
	// MaxTimeSteps is the total number of agent ticks to run.
	MaxTimeSteps int `yaml:"maxTimeSteps" mapstructure:"maxTimeSteps" json:"maxTimeSteps"`
	// ShowEveryNSteps is the number of agent ticks per timer tick, and per published snapshot.
	ShowEveryNSteps int `yaml:"showEveryNSteps" mapstructure:"showEveryNSteps" json:"showEveryNSteps"`
	// Delay between batches. Zero runs the batches back to back.
	Delay time.Duration `yaml:"delay" mapstructure:"delay" json:"delay"`
	// Seed of the single random source shared by the environment and the agent.
	Seed uint64 `yaml:"seed" mapstructure:"seed" json:"seed"`
	// Track names one of grid_world.Tracks.
	Track string `yaml:"track" mapstructure:"track" json:"track"`
}

func DefaultOptions() Options {
	return Options{
		MaxTimeSteps:    100000,
		ShowEveryNSteps: 10,
		Delay:           0,
		Seed:            1,
		Track:           "cliff",
	}
}

var ErrInvalidOptions = errors.New("invalid playground options")

func (opts Options) Validate() error {
	if opts.MaxTimeSteps < 0 {
		return fmt.Errorf("%w: maxTimeSteps must be non-negative, got %d", ErrInvalidOptions, opts.MaxTimeSteps)
	}
	if opts.ShowEveryNSteps < 1 {
		return fmt.Errorf("%w: showEveryNSteps must be positive, got %d", ErrInvalidOptions, opts.ShowEveryNSteps)
	}
	if opts.Delay < 0 {
		return fmt.Errorf("%w: delay must be non-negative, got %v", ErrInvalidOptions, opts.Delay)
	}
	return nil
}

// Stats is a point-in-time read of the run's gauges.
type Stats struct {
	RunID           string  `json:"runId"`
	Episodes        int64   `json:"episodes"`
	Ticks           int64   `json:"ticks"`
	LastReturn      float64 `json:"lastReturn"`
	MeanReturn      float64 `json:"meanReturn"`
	BehaviorEpsilon float64 `json:"behaviorEpsilon"`
	TargetEpsilon   float64 `json:"targetEpsilon"`
	Running         bool    `json:"running"`
}

// Playground owns the tick loop of one agent. Only the goroutine calling Run touches the
// agent; everything else goes through Reconfigure, Snapshots, Stats and the value store,
// which are safe for concurrent use.
type Playground struct {
	runID uuid.UUID
	opts  Options
	agent *reinforcement.Agent
	log   zerolog.Logger

	cfgMu   sync.Mutex
	cfg     *reinforcement.Config
	pending chan *reinforcement.Config

	snapshots chan models.Snapshot

	episodes        atomic.Int64
	ticks           atomic.Int64
	running         atomic.Bool
	lastReturn      atomic_float.Float64
	totalReturn     atomic_float.Float64
	behaviorEpsilon atomic_float.Float64
	targetEpsilon   atomic_float.Float64
}

// New returns a playground driving agent. The logger is tagged with a fresh run id.
func New(agent *reinforcement.Agent, opts Options, logger zerolog.Logger) (*Playground, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	pg := &Playground{
		runID:     runID,
		opts:      opts,
		agent:     agent,
		log:       logger.With().Str("run", runID.String()).Logger(),
		cfg:       agent.Config(),
		pending:   make(chan *reinforcement.Config, 1),
		snapshots: make(chan models.Snapshot, 1),
	}
	pg.updateGauges()
	return pg, nil
}

func (pg *Playground) RunID() uuid.UUID {
	return pg.runID
}

func (pg *Playground) Options() Options {
	return pg.opts
}

// Store returns the agent's value store, which views may read while the loop runs.
func (pg *Playground) Store() *reinforcement.ValueStore {
	return pg.agent.Store()
}

// Snapshots returns the snapshot feed. It holds only the latest snapshot: slow readers
// miss intermediate ones. It is closed when Run returns.
func (pg *Playground) Snapshots() <-chan models.Snapshot {
	return pg.snapshots
}

// Agent returns the driven agent. It must not be used while Run is running.
func (pg *Playground) Agent() *reinforcement.Agent {
	return pg.agent
}

// Config returns the most recently accepted config, which may still be pending.
func (pg *Playground) Config() *reinforcement.Config {
	pg.cfgMu.Lock()
	defer pg.cfgMu.Unlock()
	return pg.cfg.Clone()
}

// Reconfigure validates cfg and queues it for the loop, which installs it before the next
// batch of ticks. A queued config not yet installed is replaced.
func (pg *Playground) Reconfigure(cfg *reinforcement.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pg.cfgMu.Lock()
	defer pg.cfgMu.Unlock()
	pg.cfg = cfg.Clone()
	select {
	case <-pg.pending:
	default:
	}
	pg.pending <- pg.cfg.Clone()
	return nil
}

func (pg *Playground) Stats() Stats {
	episodes := pg.episodes.Load()
	var mean float64
	if episodes > 0 {
		mean = pg.totalReturn.Load() / float64(episodes)
	}
	return Stats{
		RunID:           pg.runID.String(),
		Episodes:        episodes,
		Ticks:           pg.ticks.Load(),
		LastReturn:      pg.lastReturn.Load(),
		MeanReturn:      mean,
		BehaviorEpsilon: pg.behaviorEpsilon.Load(),
		TargetEpsilon:   pg.targetEpsilon.Load(),
		Running:         pg.running.Load(),
	}
}

// Run ticks the agent until MaxTimeSteps ticks have run or ctx is done. The only error is
// a fatal one from the agent; running out of time is a normal stop.
func (pg *Playground) Run(ctx context.Context) error {
	defer close(pg.snapshots)
	pg.running.Store(true)
	defer pg.running.Store(false)

	cfg := pg.agent.Config()
	pg.log.Info().
		Str("algorithm", reinforcement.StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon)).
		Int("maxTimeSteps", pg.opts.MaxTimeSteps).
		Int("showEveryNSteps", pg.opts.ShowEveryNSteps).
		Dur("delay", pg.opts.Delay).
		Msg("run started")

	wait := func() bool {
		return ctx.Err() == nil
	}
	if pg.opts.Delay > 0 {
		ticker := channerics.NewTicker(ctx.Done(), pg.opts.Delay)
		wait = func() bool {
			select {
			case <-ctx.Done():
				return false
			case _, ok := <-ticker:
				return ok
			}
		}
	}

	pg.publish()
	for remaining := pg.opts.MaxTimeSteps; remaining > 0; {
		if !wait() {
			pg.log.Info().Int64("ticks", pg.ticks.Load()).Msg("run stopped")
			return nil
		}
		if err := pg.applyPending(); err != nil {
			return err
		}

		batch := pg.opts.ShowEveryNSteps
		if batch > remaining {
			batch = remaining
		}
		if err := pg.runBatch(batch); err != nil {
			pg.log.Error().Err(err).Msg("run failed")
			return err
		}
		remaining -= batch
		pg.publish()
	}

	pg.log.Info().
		Int64("ticks", pg.ticks.Load()).
		Int64("episodes", pg.episodes.Load()).
		Msg("run finished")
	return nil
}

func (pg *Playground) runBatch(n int) error {
	for i := 0; i < n; i++ {
		signal, err := pg.agent.Tick()
		pg.ticks.Add(1)
		if err != nil {
			return fmt.Errorf("tick %d: %w", pg.ticks.Load(), err)
		}
		if signal == models.EPISODE_FINISHED {
			returns := pg.agent.EpisodeReturns()
			pg.episodes.Store(int64(len(returns)))
			last := returns[len(returns)-1]
			pg.lastReturn.Store(last)
			pg.totalReturn.Add(last)
		}
	}
	pg.updateGauges()
	return nil
}

func (pg *Playground) applyPending() error {
	select {
	case cfg := <-pg.pending:
		return pg.agent.Reconfigure(cfg)
	default:
		return nil
	}
}

func (pg *Playground) updateGauges() {
	behavior, target := pg.agent.Epsilons()
	pg.behaviorEpsilon.Store(behavior)
	pg.targetEpsilon.Store(target)
}

// publish replaces any unread snapshot with the current one. Run is the only sender.
func (pg *Playground) publish() {
	snapshot := pg.agent.Snapshot()
	select {
	case pg.snapshots <- snapshot:
		return
	default:
	}
	select {
	case <-pg.snapshots:
	default:
	}
	pg.snapshots <- snapshot
}
