// config loads training configuration from yaml. Files are wrapped in a {kind, def}
// envelope so that several kinds of definitions may share the same loader.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"playground/playground"
	"playground/reinforcement"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TRAINING_KIND is the only envelope kind understood by FromYaml.
const TRAINING_KIND = "training"

// OuterConfig is the {kind, def} envelope.
type OuterConfig struct {
	Kind string    `yaml:"kind"`
	Def  yaml.Node `yaml:"def"`
}

// TrainingConfig holds everything a run needs besides the CLI: the agent's algorithmic
// parameters, the playground's driver options, an optional algorithm preset and a deadline.
type TrainingConfig struct {
	Agent      *reinforcement.Config `yaml:"agent"`
	Playground playground.Options    `yaml:"playground"`
	// Algorithm is a preset name applied over Agent, see reinforcement.Config.ApplyAlgorithm.
	Algorithm string `yaml:"algorithm"`
	// TrainingDeadline is a fixed deadline or duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingDeadline"`
}

// Default returns the config used when no file is given.
func Default() *TrainingConfig {
	return &TrainingConfig{
		Agent:      reinforcement.DefaultConfig(),
		Playground: playground.DefaultOptions(),
	}
}

var ErrUnknownKind = errors.New("unknown config kind")

// FromYaml reads a training config. Fields missing from the file keep their defaults.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if kind := vp.GetString("kind"); kind != TRAINING_KIND {
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnknownKind, kind)
	}

	// Viper lowercases keys, which would lose the camelCase field names of the def, so the
	// def is decoded from the file's own yaml tree instead.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	outerConfig := &OuterConfig{}
	if err = yaml.Unmarshal(raw, outerConfig); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	innerConfig := Default()
	if outerConfig.Def.Kind != 0 {
		if err = outerConfig.Def.Decode(innerConfig); err != nil {
			return nil, fmt.Errorf("decode %s def: %w", path, err)
		}
	}
	if err = innerConfig.Resolve(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return innerConfig, nil
}

// Resolve applies the algorithm preset, if any, and validates the result.
func (cfg *TrainingConfig) Resolve() error {
	if cfg.Agent == nil {
		cfg.Agent = reinforcement.DefaultConfig()
	}
	if cfg.Algorithm != "" {
		if err := cfg.Agent.ApplyAlgorithm(cfg.Algorithm); err != nil {
			return err
		}
	}
	if err := cfg.Agent.Validate(); err != nil {
		return err
	}
	return cfg.Playground.Validate()
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
// A "duration" is relative to now; a "deadline" is an RFC 3339 time.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training duration: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	if val, ok := cfg.TrainingDeadline["deadline"]; ok {
		deadline, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithDeadline(ctx, deadline)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}
