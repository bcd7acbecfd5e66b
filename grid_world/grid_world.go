package grid_world

import (
	"errors"
	"fmt"

	"playground/models"

	"golang.org/x/exp/rand"
)

const (
	// Track cell types
	WALL   = 'W'
	OPEN   = 'o'
	START  = '-'
	FINISH = '+'

	// Rewards
	COLLISION_REWARD = -5
	STEP_REWARD      = -1
)

// Tracks available by name. Rows are printed top to bottom, so row 0 is y=0.
var (
	// CorridorTrack is the smallest useful track: start, one open cell, finish.
	CorridorTrack []string = []string{
		"-o+",
	}

	CliffTrack []string = []string{
		"oooooooooooo",
		"oooooooooooo",
		"oooooooooooo",
		"-WWWWWWWWWW+",
	}

	DebugTrack []string = []string{
		"WWWWWW",
		"Woooo+",
		"Woooo+",
		"WooWWW",
		"WooWWW",
		"WooWWW",
		"WooWWW",
		"W--WWW",
	}

	FullTrack []string = []string{
		"WWWWWWWWWWWWWWWWWW",
		"WWWWooooooooooooo+",
		"WWWoooooooooooooo+",
		"WWWoooooooooooooo+",
		"WWooooooooooooooo+",
		"Woooooooooooooooo+",
		"Woooooooooooooooo+",
		"WooooooooooWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WoooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWooooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWoooooooWWWWWWWW",
		"WWWWooooooWWWWWWWW",
		"WWWWooooooWWWWWWWW",
		"WWWW------WWWWWWWW",
	}

	Tracks = map[string][]string{
		"corridor": CorridorTrack,
		"cliff":    CliffTrack,
		"debug":    DebugTrack,
		"full":     FullTrack,
	}
)

// GridWorld is a deterministic, episodic grid environment. The agent starts on a random
// start cell; every move costs STEP_REWARD, except bumping into a wall or the grid edge,
// which costs COLLISION_REWARD and leaves the agent in place. Entering a finish cell ends
// the episode.
type GridWorld struct {
	cells  [][]rune // [x][y]
	starts []models.State
	agent  *models.State
	rng    *rand.Rand
}

// ErrBadTrack is returned for empty or ragged tracks, or unknown cell runes.
var ErrBadTrack = errors.New("malformed track")

// Convert parses a track into a grid world. Start cells are drawn using src.
func Convert(track []string, src rand.Source) (*GridWorld, error) {
	if len(track) == 0 || len(track[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadTrack)
	}
	width, height := len(track[0]), len(track)

	world := &GridWorld{
		cells: make([][]rune, width),
		rng:   rand.New(src),
	}
	for x := range world.cells {
		world.cells[x] = make([]rune, height)
	}

	for y, row := range track {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, expected %d", ErrBadTrack, y, len(row), width)
		}
		for x, cell := range row {
			switch cell {
			case WALL, OPEN, FINISH:
			case START:
				world.starts = append(world.starts, models.State{X: x, Y: y})
			default:
				return nil, fmt.Errorf("%w: unknown cell %q at (%d,%d)", ErrBadTrack, cell, x, y)
			}
			world.cells[x][y] = cell
		}
	}
	return world, nil
}

// FromName converts one of the named Tracks.
func FromName(name string, src rand.Source) (*GridWorld, error) {
	track, ok := Tracks[name]
	if !ok {
		return nil, fmt.Errorf("%w: no track named %q", ErrBadTrack, name)
	}
	return Convert(track, src)
}

func (world *GridWorld) GridShape() (width, height int) {
	return len(world.cells), len(world.cells[0])
}

// CellType returns the track rune at s.
func (world *GridWorld) CellType(s models.State) rune {
	return world.cells[s.X][s.Y]
}

func (world *GridWorld) inBounds(s models.State) bool {
	width, height := world.GridShape()
	return s.X >= 0 && s.X < width && s.Y >= 0 && s.Y < height
}

// GiveInitialPosition places the agent on a uniformly chosen start cell.
func (world *GridWorld) GiveInitialPosition() (models.State, bool) {
	if len(world.starts) == 0 {
		return models.State{}, false
	}
	start := world.starts[world.rng.Intn(len(world.starts))]
	world.agent = &start
	return start, true
}

func (world *GridWorld) ApplyAction(s models.State, a models.Action) (reward float64, next models.State, terminal bool) {
	next = s.Move(a)
	if !world.inBounds(next) || world.CellType(next) == WALL {
		next = s
		reward = COLLISION_REWARD
	} else {
		reward = STEP_REWARD
	}

	world.agent = &next
	terminal = world.CellType(next) == FINISH
	return
}

// RemoveAgent takes the agent off the grid; it has no position afterward.
func (world *GridWorld) RemoveAgent() (models.State, bool) {
	world.agent = nil
	return models.State{}, false
}

// AgentPosition returns where the environment last placed the agent.
func (world *GridWorld) AgentPosition() (models.State, bool) {
	if world.agent == nil {
		return models.State{}, false
	}
	return *world.agent, true
}

// Visit calls fn for every cell, column by column.
func (world *GridWorld) Visit(fn func(s models.State, cellType rune)) {
	for x := range world.cells {
		for y := range world.cells[x] {
			fn(models.State{X: x, Y: y}, world.cells[x][y])
		}
	}
}
