/*
Playground trains a tabular n-step agent on a grid world and shows its progress live: the
value of each cell, the greedy policy, and the agent's moves, served as a single page over
websocket. The same update engine covers sarsa, expected sarsa, q-learning and monte carlo
by flipping a few switches, which can be changed while training runs via PUT /config.
After the run the returns and the learned values are archived and the returns plotted.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"playground/archive"
	"playground/config"
	"playground/grid_world"
	"playground/models"
	"playground/playground"
	"playground/reinforcement"
	"playground/server"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// progressRate is how often training progress is logged.
const progressRate = 2 * time.Second

var rootCmd = &cobra.Command{
	Use:   "playground",
	Short: "Tabular n-step reinforcement learning on a grid world",
	Long: `Playground runs one agent on a grid world track, learning action values with
sarsa, expected sarsa, q-learning or monte carlo updates over an n-step window.

Settings come from a yaml config file (--config), overridden by flags, overridden by
PLAYGROUND_* environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd.Context(), viper.GetViper(), cmd.OutOrStdout())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "Path to a training config yaml")
	flags.String("track", "", "Track to train on (corridor, cliff, debug, full)")
	flags.String("algorithm", "", "Algorithm preset (sarsa, nstep_sarsa, qlearning, expected_sarsa, montecarlo)")
	flags.Uint64("seed", 1, "Seed of every random source")
	flags.Int("max-ticks", 0, "Number of agent ticks to run")
	flags.Int("every", 0, "Ticks between snapshots")
	flags.Duration("delay", 0, "Wall-clock delay per batch of ticks")
	flags.String("duration", "", "Training duration, e.g. 10m")

	flags.Bool("serve", false, "Serve the live view while training")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.Bool("console", true, "Print the grid, the policy and the values after training")

	flags.String("returns-out", "", "Parquet file to archive episode returns to")
	flags.String("values-out", "", "Parquet file to archive the learned values to")
	flags.String("plot-out", "", "HTML file to plot episode returns to")
	flags.Int("plot-window", 20, "Moving average window of the returns plot")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper for environment variable support
	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("PLAYGROUND")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// newLogger returns a console logger at the named level.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// loadConfig reads the config file, if any, and applies the flags and env vars that were
// explicitly set over it.
func loadConfig(vp *viper.Viper) (*config.TrainingConfig, error) {
	cfg := config.Default()
	if path := vp.GetString("config"); path != "" {
		var err error
		if cfg, err = config.FromYaml(path); err != nil {
			return nil, err
		}
	}

	if vp.IsSet("track") {
		cfg.Playground.Track = vp.GetString("track")
	}
	if vp.IsSet("algorithm") {
		cfg.Algorithm = vp.GetString("algorithm")
	}
	if vp.IsSet("seed") {
		cfg.Playground.Seed = vp.GetUint64("seed")
	}
	if vp.IsSet("max-ticks") {
		cfg.Playground.MaxTimeSteps = vp.GetInt("max-ticks")
	}
	if vp.IsSet("every") {
		cfg.Playground.ShowEveryNSteps = vp.GetInt("every")
	}
	if vp.IsSet("delay") {
		cfg.Playground.Delay = vp.GetDuration("delay")
	}
	if vp.IsSet("duration") {
		cfg.TrainingDeadline = map[string]string{"duration": vp.GetString("duration")}
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build wires a world, an agent and its playground. Each stochastic component gets its own
// source, derived from the one seed, so that runs are reproducible.
func build(
	cfg *config.TrainingConfig,
	logger zerolog.Logger,
) (*grid_world.GridWorld, *playground.Playground, error) {
	seed := cfg.Playground.Seed
	world, err := grid_world.FromName(cfg.Playground.Track, rand.NewSource(seed))
	if err != nil {
		return nil, nil, err
	}

	agent, err := reinforcement.NewAgent(world, cfg.Agent, rand.NewSource(seed+1), logger)
	if err != nil {
		return nil, nil, err
	}

	pg, err := playground.New(agent, cfg.Playground, logger)
	if err != nil {
		return nil, nil, err
	}
	return world, pg, nil
}

func runApp(ctx context.Context, vp *viper.Viper, out io.Writer) (err error) {
	logger, err := newLogger(os.Stderr, vp.GetString("log-level"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(vp)
	if err != nil {
		return err
	}

	appCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainingCtx, cancelTraining, err := cfg.WithTrainingDeadline(appCtx)
	if err != nil {
		return err
	}
	defer cancelTraining()

	world, pg, err := build(cfg, logger)
	if err != nil {
		return err
	}
	logger = logger.With().Str("run", pg.RunID().String()).Logger()
	logger.Info().
		Str("track", cfg.Playground.Track).
		Str("algorithm", reinforcement.StrategyOf(cfg.Agent).Name(cfg.Agent.StepHorizon, cfg.Agent.TargetEpsilon)).
		Int("maxTicks", cfg.Playground.MaxTimeSteps).
		Msg("training")

	// The server outlives training so the final values stay visible until interrupted.
	group, groupCtx := errgroup.WithContext(appCtx)
	if vp.GetBool("serve") {
		srv, err := server.NewServer(groupCtx, vp.GetString("addr"), world, pg, pg.Snapshots(), logger)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
	} else {
		group.Go(func() error {
			drain(groupCtx.Done(), pg.Snapshots())
			return nil
		})
	}

	group.Go(func() error {
		logProgress(trainingCtx.Done(), pg, logger)
		return nil
	})

	group.Go(func() error {
		defer cancelTraining()
		if err := pg.Run(trainingCtx); err != nil {
			return err
		}

		stats := pg.Stats()
		logger.Info().
			Int64("ticks", stats.Ticks).
			Int64("episodes", stats.Episodes).
			Float64("lastReturn", stats.LastReturn).
			Float64("meanReturn", stats.MeanReturn).
			Msg("training done")
		if err := report(vp, out, world, pg); err != nil {
			return err
		}
		if vp.GetBool("serve") {
			logger.Info().Msg("still serving, interrupt to stop")
		} else {
			stop()
		}
		return nil
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// drain discards snapshots when nothing views them.
func drain(done <-chan struct{}, snapshots <-chan models.Snapshot) {
	for range channerics.OrDone(done, snapshots) {
	}
}

func logProgress(done <-chan struct{}, pg *playground.Playground, logger zerolog.Logger) {
	for range channerics.NewTicker(done, progressRate) {
		stats := pg.Stats()
		logger.Info().
			Int64("ticks", stats.Ticks).
			Int64("episodes", stats.Episodes).
			Float64("lastReturn", stats.LastReturn).
			Float64("behaviorEpsilon", stats.BehaviorEpsilon).
			Msg("progress")
	}
}

// report prints the console views and writes the requested archives.
func report(vp *viper.Viper, out io.Writer, world *grid_world.GridWorld, pg *playground.Playground) error {
	agent := pg.Agent()
	if vp.GetBool("console") {
		fmt.Fprintln(out, "grid:")
		grid_world.ShowGrid(out, world, agent.Snapshot())
		fmt.Fprintln(out, "policy:")
		grid_world.ShowPolicy(out, world, agent.Store())
		fmt.Fprintln(out, "max values:")
		grid_world.ShowMaxValues(out, world, agent.Store())
	}

	runID := pg.RunID().String()
	if path := vp.GetString("returns-out"); path != "" {
		if err := archive.WriteReturns(path, runID, agent.EpisodeReturns()); err != nil {
			return err
		}
	}
	if path := vp.GetString("values-out"); path != "" {
		if err := archive.WriteValues(path, runID, agent); err != nil {
			return err
		}
	}
	if path := vp.GetString("plot-out"); path != "" {
		title := reinforcement.StrategyOf(agent.Config()).Name(agent.Config().StepHorizon, agent.Config().TargetEpsilon)
		if err := archive.PlotReturns(path, title, agent.EpisodeReturns(), vp.GetInt("plot-window")); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
