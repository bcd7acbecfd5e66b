package archive

import (
	"os"
	"path/filepath"
	"testing"

	"playground/grid_world"
	"playground/models"
	"playground/reinforcement"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

func TestWriteReturns(t *testing.T) {
	Convey("When episode returns are archived", t, func() {
		path := filepath.Join(t.TempDir(), "out", "returns.parquet")
		returns := []float64{-7, -3, -2}
		So(WriteReturns(path, "run-1", returns), ShouldBeNil)

		Convey("They read back in episode order", func() {
			rows, err := ReadReturns(path)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []ReturnRow{
				{RunID: "run-1", Episode: 1, Return: -7},
				{RunID: "run-1", Episode: 2, Return: -3},
				{RunID: "run-1", Episode: 3, Return: -2},
			})
		})

		Convey("No temp file is left behind", func() {
			_, err := os.Stat(path + ".tmp")
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
}

func TestWriteValues(t *testing.T) {
	Convey("When an agent's values are archived", t, func() {
		world, err := grid_world.FromName("corridor", rand.NewSource(1))
		So(err, ShouldBeNil)
		cfg := reinforcement.DefaultConfig()
		cfg.DynamicAlpha = true
		agent, err := reinforcement.NewAgent(world, cfg, rand.NewSource(1), zerolog.Nop())
		So(err, ShouldBeNil)
		for i := 0; i < 200; i++ {
			_, err = agent.Tick()
			So(err, ShouldBeNil)
		}

		path := filepath.Join(t.TempDir(), "values.parquet")
		So(WriteValues(path, "run-2", agent), ShouldBeNil)

		Convey("Every state and action has a row matching the store", func() {
			rows, err := ReadValues(path)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 3*models.NUM_ACTIONS)

			store := agent.Store()
			for _, row := range rows {
				s := models.State{X: int(row.X), Y: int(row.Y)}
				var action models.Action
				for _, a := range models.ACTIONS {
					if a.String() == row.Action {
						action = a
					}
				}
				So(row.RunID, ShouldEqual, "run-2")
				So(row.Value, ShouldEqual, store.Get(s, action))
				So(int(row.Visits), ShouldEqual, agent.Engine().Visits(s, action))
			}
		})
	})
}

func TestPlotReturns(t *testing.T) {
	Convey("When returns are plotted", t, func() {
		path := filepath.Join(t.TempDir(), "returns.html")
		So(PlotReturns(path, "corridor", []float64{-9, -5, -2, -2}, 2), ShouldBeNil)

		contents, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(contents), ShouldContainSubstring, "corridor")
		So(string(contents), ShouldContainSubstring, "echarts")
	})

	Convey("Moving averages use partial windows at the start", t, func() {
		So(MovingAverage([]float64{2, 4, 6, 8}, 2), ShouldResemble, []float64{2, 3, 5, 7})
		So(MovingAverage(nil, 3), ShouldBeEmpty)
	})
}
