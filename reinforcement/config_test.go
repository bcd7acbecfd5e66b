package reinforcement

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfig(t *testing.T) {
	Convey("The default config is valid one-step sarsa", t, func() {
		cfg := DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)
		So(StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon), ShouldEqual, "sarsa")
	})

	Convey("Out of domain parameters are rejected", t, func() {
		for _, mutate := range []func(*Config){
			func(cfg *Config) { cfg.LearningRate = 0 },
			func(cfg *Config) { cfg.LearningRate = 1.5 },
			func(cfg *Config) { cfg.Discount = -0.1 },
			func(cfg *Config) { cfg.StepHorizon = 0 },
			func(cfg *Config) { cfg.StepHorizon = -2 },
			func(cfg *Config) { cfg.PlanningBudget = -1 },
			func(cfg *Config) { cfg.BehaviorEpsilon = 2 },
			func(cfg *Config) { cfg.TargetEpsilonDecay = -1 },
			func(cfg *Config) { cfg.InitialValueSigma = -1 },
		} {
			cfg := DefaultConfig()
			mutate(cfg)
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		}
	})

	Convey("The learning rate is ignored under count-based step sizes", t, func() {
		cfg := DefaultConfig()
		cfg.DynamicAlpha = true
		cfg.LearningRate = 0
		So(cfg.Validate(), ShouldBeNil)
	})

	Convey("Clones are independent", t, func() {
		cfg := DefaultConfig()
		clone := cfg.Clone()
		clone.Discount = 0.5
		So(cfg.Discount, ShouldEqual, 1)
	})

	Convey("When algorithms are applied by name", t, func() {
		cfg := DefaultConfig()

		Convey("qlearning is off-policy with a greedy target", func() {
			cfg.TargetEpsilon = 0.3
			So(cfg.ApplyAlgorithm("qlearning"), ShouldBeNil)
			So(cfg.OnPolicy, ShouldBeFalse)
			So(cfg.TargetEpsilon, ShouldEqual, 0)
			So(StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon), ShouldEqual, "q-learning")
		})

		Convey("nstep_sarsa widens a one-step horizon", func() {
			So(cfg.ApplyAlgorithm(NSTEP_SARSA), ShouldBeNil)
			So(cfg.StepHorizon, ShouldEqual, 4)
			So(StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon), ShouldEqual, "4-step sarsa")
		})

		Convey("montecarlo uses the sentinel horizon", func() {
			So(cfg.ApplyAlgorithm(" MonteCarlo "), ShouldBeNil)
			So(cfg.IsMonteCarlo(), ShouldBeTrue)
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("expected_sarsa leaves monte carlo for one step", func() {
			cfg.StepHorizon = MONTE_CARLO
			So(cfg.ApplyAlgorithm(EXPECTED_SARSA), ShouldBeNil)
			So(cfg.StepHorizon, ShouldEqual, 1)
			So(cfg.UpdateByExpectation, ShouldBeTrue)
		})

		Convey("Unknown names are rejected", func() {
			So(errors.Is(cfg.ApplyAlgorithm("dqn"), ErrUnknownAlgorithm), ShouldBeTrue)
		})
	})
}

func TestStrategyNames(t *testing.T) {
	Convey("Strategies are named after the textbook algorithm they amount to", t, func() {
		onSample := UpdateStrategy{Target: SAMPLE_TARGET, OnPolicy: true}
		offSample := UpdateStrategy{Target: SAMPLE_TARGET}
		expected := UpdateStrategy{Target: EXPECTED_TARGET, OnPolicy: true}

		So(onSample.Name(3, 0), ShouldEqual, "3-step sarsa")
		So(onSample.Name(MONTE_CARLO, 0), ShouldEqual, "monte carlo")
		So(offSample.Name(MONTE_CARLO, 0), ShouldEqual, "off-policy monte carlo")
		So(offSample.Name(2, 0), ShouldEqual, "2-step q-learning")
		So(offSample.Name(2, 0.1), ShouldEqual, "2-step off-policy sarsa")
		So(expected.Name(1, 0), ShouldEqual, "expected sarsa")
		So(expected.Name(3, 0), ShouldEqual, "3-step expected sarsa")

		onSample.StepSize = COUNT_STEP
		So(onSample.Name(1, 0), ShouldEqual, "sarsa (1/n step size)")
	})

	Convey("Step sizes are fixed or count-based", t, func() {
		So(UpdateStrategy{}.StepSizeFor(0.3, 10), ShouldEqual, 0.3)
		So(UpdateStrategy{StepSize: COUNT_STEP}.StepSizeFor(0.3, 4), ShouldEqual, 0.25)
	})
}
