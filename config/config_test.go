package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"playground/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: training
def:
  algorithm: qlearning
  agent:
    learningRate: 0.5
    discount: 0.9
    behaviorEpsilon: 0.2
    targetEpsilon: 0.3
    initialValueSigma: 0.1
  playground:
    maxTimeSteps: 500
    showEveryNSteps: 5
    delay: 5ms
    seed: 42
    track: corridor
  trainingDeadline:
    duration: 1m
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When a training config is read", t, func() {
		cfg, err := FromYaml(writeConfig(t, testConfig))
		So(err, ShouldBeNil)

		Convey("The agent parameters are decoded, keeping defaults for missing fields", func() {
			So(cfg.Agent.LearningRate, ShouldEqual, 0.5)
			So(cfg.Agent.Discount, ShouldEqual, 0.9)
			So(cfg.Agent.BehaviorEpsilon, ShouldEqual, 0.2)
			So(cfg.Agent.InitialValueSigma, ShouldEqual, 0.1)
			So(cfg.Agent.BehaviorEpsilonDecay, ShouldEqual, 1.0)
		})

		Convey("The algorithm preset is applied over the agent parameters", func() {
			So(cfg.Agent.OnPolicy, ShouldBeFalse)
			So(cfg.Agent.TargetEpsilon, ShouldEqual, 0)
			So(cfg.Agent.StepHorizon, ShouldEqual, 1)
		})

		Convey("The playground options are decoded", func() {
			So(cfg.Playground.MaxTimeSteps, ShouldEqual, 500)
			So(cfg.Playground.ShowEveryNSteps, ShouldEqual, 5)
			So(cfg.Playground.Delay, ShouldEqual, 5*time.Millisecond)
			So(cfg.Playground.Seed, ShouldEqual, uint64(42))
			So(cfg.Playground.Track, ShouldEqual, "corridor")
		})

		Convey("The training deadline bounds the context", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeLessThanOrEqualTo, time.Minute)
		})
	})

	Convey("When a config has another kind", t, func() {
		_, err := FromYaml(writeConfig(t, "kind: server\ndef: {}\n"))
		So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
	})

	Convey("When a config has no def", t, func() {
		cfg, err := FromYaml(writeConfig(t, "kind: training\n"))
		So(err, ShouldBeNil)
		So(cfg.Agent, ShouldResemble, reinforcement.DefaultConfig())
		So(cfg.Playground, ShouldResemble, Default().Playground)
	})

	Convey("When a config is out of domain", t, func() {
		_, err := FromYaml(writeConfig(t, "kind: training\ndef:\n  agent:\n    discount: 3\n"))
		So(errors.Is(err, reinforcement.ErrInvalidConfig), ShouldBeTrue)

		_, err = FromYaml(writeConfig(t, "kind: training\ndef:\n  algorithm: dqn\n"))
		So(errors.Is(err, reinforcement.ErrUnknownAlgorithm), ShouldBeTrue)
	})

	Convey("When the file does not exist", t, func() {
		_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestWithTrainingDeadline(t *testing.T) {
	Convey("Without a deadline the context is only cancellable", t, func() {
		ctx, cancel, err := Default().WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
		cancel()
		So(errors.Is(ctx.Err(), context.Canceled), ShouldBeTrue)
	})

	Convey("A fixed deadline is parsed as RFC 3339", t, func() {
		cfg := Default()
		cfg.TrainingDeadline = map[string]string{"deadline": "2000-01-01T00:00:00Z"}
		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		So(errors.Is(ctx.Err(), context.DeadlineExceeded), ShouldBeTrue)
	})

	Convey("Malformed durations are errors", t, func() {
		cfg := Default()
		cfg.TrainingDeadline = map[string]string{"duration": "soon"}
		_, _, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldNotBeNil)
	})
}

func TestSampleConfig(t *testing.T) {
	Convey("The sample config at the repo root is valid", t, func() {
		cfg, err := FromYaml("../config.yaml")
		So(err, ShouldBeNil)
		So(cfg.Agent.StepHorizon, ShouldEqual, 4)
		So(cfg.Playground.Track, ShouldEqual, "cliff")
		So(cfg.Playground.Delay, ShouldEqual, time.Duration(0))
	})
}
