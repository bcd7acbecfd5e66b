package grid_world

import (
	"fmt"
	"io"
	"strings"

	"playground/models"

	"github.com/logrusorgru/aurora"
)

// ActionValues is the read access the console views need into learned values.
type ActionValues interface {
	GreedySet(s models.State) []models.Action
	Max(s models.State) float64
}

// ShowGrid prints the track, marking the agent: green, or red if its last move was exploratory.
func ShowGrid(w io.Writer, world *GridWorld, snapshot models.Snapshot) {
	width, height := world.GridShape()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := models.State{X: x, Y: y}
			if pos := snapshot.AgentPosition; pos != nil && *pos == s {
				if snapshot.Exploratory {
					fmt.Fprint(w, aurora.Red("A "))
				} else {
					fmt.Fprint(w, aurora.Green("A "))
				}
				continue
			}
			fmt.Fprint(w, colorCell(world.CellType(s), fmt.Sprintf("%c ", world.CellType(s))))
		}
		fmt.Fprintln(w)
	}
}

// ShowPolicy prints the greedy action of each live cell. Ties print as '*'.
func ShowPolicy(w io.Writer, world *GridWorld, values ActionValues) {
	width, height := world.GridShape()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := models.State{X: x, Y: y}
			cellType := world.CellType(s)
			if cellType == WALL || cellType == FINISH {
				fmt.Fprint(w, colorCell(cellType, fmt.Sprintf("%c ", cellType)))
				continue
			}
			greedy := values.GreedySet(s)
			dir := '*'
			if len(greedy) == 1 {
				dir = greedy[0].Arrow()
			}
			fmt.Fprint(w, aurora.Blue(fmt.Sprintf("%c ", dir)))
		}
		fmt.Fprintln(w)
	}
}

// ShowMaxValues prints max_a Q(s,a) per cell.
func ShowMaxValues(w io.Writer, world *GridWorld, values ActionValues) {
	width, height := world.GridShape()
	for y := 0; y < height; y++ {
		cols := make([]string, 0, width)
		for x := 0; x < width; x++ {
			s := models.State{X: x, Y: y}
			if world.CellType(s) == WALL {
				cols = append(cols, fmt.Sprintf("%7s", "-"))
				continue
			}
			cols = append(cols, fmt.Sprintf("%7.2f", values.Max(s)))
		}
		fmt.Fprintln(w, strings.Join(cols, " "))
	}
}

func colorCell(cellType rune, text string) aurora.Value {
	switch cellType {
	case WALL:
		return aurora.Gray(12, text)
	case START:
		return aurora.Cyan(text)
	case FINISH:
		return aurora.Yellow(text)
	}
	return aurora.White(text)
}
