package reinforcement

import (
	"testing"

	"playground/models"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

// Recomputes the greedy set from scratch, for checking the cached one.
func bruteGreedy(values []float64) (greedy []models.Action) {
	maxVal := values[0]
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	for _, action := range models.ACTIONS {
		if values[action] == maxVal {
			greedy = append(greedy, action)
		}
	}
	return
}

func TestValueStore(t *testing.T) {
	Convey("When a value store is initialized from a normal distribution", t, func() {
		store := NewValueStore(3, 2, -1, 0.5, rand.NewSource(42))

		Convey("Every state has a value for every action and a non-empty greedy set", func() {
			width, height := store.Shape()
			So(width, ShouldEqual, 3)
			So(height, ShouldEqual, 2)
			for x := 0; x < width; x++ {
				for y := 0; y < height; y++ {
					s := models.State{X: x, Y: y}
					values := store.Values(s)
					So(len(values), ShouldEqual, models.NUM_ACTIONS)
					So(store.GreedySet(s), ShouldResemble, bruteGreedy(values))
				}
			}
		})

		Convey("The same seed yields the same table", func() {
			other := NewValueStore(3, 2, -1, 0.5, rand.NewSource(42))
			for x := 0; x < 3; x++ {
				for y := 0; y < 2; y++ {
					s := models.State{X: x, Y: y}
					So(other.Values(s), ShouldResemble, store.Values(s))
				}
			}
		})
	})

	Convey("When a value store is initialized with zero variance", t, func() {
		store := NewValueStore(1, 1, 0, 0, rand.NewSource(1))
		s := models.State{}

		Convey("All actions are tied", func() {
			So(store.GreedySet(s), ShouldResemble, models.ACTIONS[:])
			So(store.Max(s), ShouldEqual, 0)
		})

		Convey("Set recomputes the greedy set, keeping ties", func() {
			store.Set(s, models.RIGHT, 1)
			So(store.GreedySet(s), ShouldResemble, []models.Action{models.RIGHT})
			So(store.Get(s, models.RIGHT), ShouldEqual, 1)

			store.Set(s, models.UP, 1)
			So(store.GreedySet(s), ShouldResemble, []models.Action{models.UP, models.RIGHT})

			store.Set(s, models.RIGHT, 0.5)
			So(store.GreedySet(s), ShouldResemble, []models.Action{models.UP})
			So(store.Max(s), ShouldEqual, 1)
		})

		Convey("Values equal up to rounding error are not tied", func() {
			a, b := 0.1, 0.2
			store.Set(s, models.UP, 0.3)
			store.Set(s, models.DOWN, a+b)
			So(store.GreedySet(s), ShouldResemble, []models.Action{models.DOWN})
		})

		Convey("Returned greedy sets are copies", func() {
			greedy := store.GreedySet(s)
			greedy[0] = models.RIGHT
			So(store.GreedySet(s)[0], ShouldEqual, models.UP)
		})
	})

	Convey("When many random writes are applied", t, func() {
		store := NewValueStore(4, 4, 0, 1, rand.NewSource(7))
		rng := rand.New(rand.NewSource(8))
		levels := []float64{-1, 0, 1}

		Convey("The greedy set always matches exactly the maximal actions", func() {
			for i := 0; i < 2000; i++ {
				s := models.State{X: rng.Intn(4), Y: rng.Intn(4)}
				a := models.ACTIONS[rng.Intn(models.NUM_ACTIONS)]
				store.Set(s, a, levels[rng.Intn(len(levels))])
				So(store.GreedySet(s), ShouldResemble, bruteGreedy(store.Values(s)))
			}
		})
	})
}
