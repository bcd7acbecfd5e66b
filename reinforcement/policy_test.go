package reinforcement

import (
	"math"
	"testing"

	"playground/models"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

func TestEpsilonGreedy(t *testing.T) {
	Convey("Given a single-state store with a tied maximum", t, func() {
		store := NewValueStore(1, 1, 0, 0, rand.NewSource(1))
		s := models.State{}
		store.Set(s, models.UP, 1)
		store.Set(s, models.DOWN, 2)
		store.Set(s, models.LEFT, 3)
		store.Set(s, models.RIGHT, 3)
		rng := rand.New(rand.NewSource(2))

		Convey("A purely greedy policy only picks greedy actions, never exploratory", func() {
			policy := NewEpsilonGreedy(store, rng, 0, 1)
			counts := map[models.Action]int{}
			for i := 0; i < 2000; i++ {
				action, exploratory := policy.ChooseAction(s)
				So(exploratory, ShouldBeFalse)
				counts[action]++
			}
			So(counts[models.UP], ShouldEqual, 0)
			So(counts[models.DOWN], ShouldEqual, 0)
			// Ties are broken uniformly.
			So(counts[models.LEFT], ShouldBeBetween, 800, 1200)
			So(counts[models.RIGHT], ShouldBeBetween, 800, 1200)
		})

		Convey("A fully random policy always explores", func() {
			policy := NewEpsilonGreedy(store, rng, 1, 1)
			for i := 0; i < 200; i++ {
				_, exploratory := policy.ChooseAction(s)
				So(exploratory, ShouldBeTrue)
			}
		})

		Convey("The expected value weights greedy actions by eps/m + (1-eps)/g", func() {
			policy := NewEpsilonGreedy(store, rng, 0.2, 1)
			// 0.05*1 + 0.05*2 + 0.45*3 + 0.45*3
			So(policy.ExpectedValue(s), ShouldAlmostEqual, 2.85, 1e-12)
		})

		Convey("The greedy expectation is the max", func() {
			policy := NewEpsilonGreedy(store, rng, 0, 1)
			So(policy.ExpectedValue(s), ShouldAlmostEqual, 3, 1e-12)
		})

		Convey("The uniform expectation is the mean", func() {
			policy := NewEpsilonGreedy(store, rng, 1, 1)
			So(policy.ExpectedValue(s), ShouldAlmostEqual, 2.25, 1e-12)
		})
	})

	Convey("When epsilon decays", t, func() {
		store := NewValueStore(1, 1, 0, 0, rand.NewSource(1))
		policy := NewEpsilonGreedy(store, rand.New(rand.NewSource(1)), 0.5, 0.9)

		Convey("After t decays epsilon is eps0 * d^t", func() {
			for i := 0; i < 10; i++ {
				policy.Decay()
			}
			So(policy.Epsilon(), ShouldAlmostEqual, 0.5*math.Pow(0.9, 10), 1e-12)
		})

		Convey("Reset replaces epsilon and the rate", func() {
			policy.Reset(0.3, 0)
			So(policy.Epsilon(), ShouldEqual, 0.3)
			policy.Decay()
			So(policy.Epsilon(), ShouldEqual, 0)
			policy.Decay()
			So(policy.Epsilon(), ShouldEqual, 0)
		})
	})
}
