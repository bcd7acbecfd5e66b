// cell_views contains views derived from the Frame view-model.
package cell_views

import (
	"playground/grid_world"
	"playground/models"
)

// Grid is the static layout of the world being viewed.
type Grid interface {
	GridShape() (width, height int)
	CellType(s models.State) rune
}

// Values is read access to the learned action values.
type Values interface {
	GreedySet(s models.State) []models.Action
	Max(s models.State) float64
}

// Cell is a grid cell reduced to what the views display. Grid y already grows downward, as
// in svg, so [x][y] needs no flipping. As a rule of thumb, Cell fields should be immediately
// usable as view parameters.
type Cell struct {
	X, Y int
	Max  float64
	// Arrow is the greedy action's arrow, or '*' for ties. Empty for walls and finishes.
	Arrow string
	Fill  string
}

// Frame is one snapshot of the run as the views see it.
type Frame struct {
	Cells       [][]Cell
	Episode     int
	Tick        int
	Exploratory bool
	Algorithm   string
	// Agent is nil between episodes.
	Agent *models.State
}

// Convert builds the frame for a snapshot, reading the current values.
func Convert(grid Grid, values Values, snapshot models.Snapshot, algorithm string) Frame {
	width, height := grid.GridShape()
	cells := make([][]Cell, width)
	for x := range cells {
		cells[x] = make([]Cell, height)
		for y := range cells[x] {
			s := models.State{X: x, Y: y}
			cellType := grid.CellType(s)
			cell := Cell{
				X:    x,
				Y:    y,
				Fill: getFill(cellType),
			}
			if cellType != grid_world.WALL && cellType != grid_world.FINISH {
				cell.Max = values.Max(s)
				cell.Arrow = getArrow(values.GreedySet(s))
			}
			cells[x][y] = cell
		}
	}

	frame := Frame{
		Cells:       cells,
		Episode:     snapshot.Episode,
		Tick:        snapshot.Tick,
		Exploratory: snapshot.Exploratory,
		Algorithm:   algorithm,
	}
	if pos := snapshot.AgentPosition; pos != nil && pos.X < width && pos.Y < height {
		agent := *pos
		frame.Agent = &agent
		// Matches the console: red after an exploratory move, green otherwise.
		if snapshot.Exploratory {
			cells[pos.X][pos.Y].Fill = "tomato"
		} else {
			cells[pos.X][pos.Y].Fill = "limegreen"
		}
	}
	return frame
}

func getArrow(greedy []models.Action) string {
	if len(greedy) != 1 {
		return "*"
	}
	return string(greedy[0].Arrow())
}

func getFill(cellType rune) (fill string) {
	switch cellType {
	case grid_world.WALL:
		fill = "lightgreen"
	case grid_world.OPEN:
		fill = "lightgray"
	case grid_world.START:
		fill = "lightblue"
	case grid_world.FINISH:
		fill = "lightyellow"
	}
	return
}
