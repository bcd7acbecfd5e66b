package models

import "fmt"

// State is a grid cell, the only thing the agent observes. X is the column and Y the row,
// such that (0,0) is the top left cell when a track is printed in the console.
type State struct {
	X, Y int
}

// Move returns the cell reached from s by the action's displacement; bounds are the
// environment's problem, not the state's.
func (s State) Move(a Action) State {
	dx, dy := a.Delta()
	return State{X: s.X + dx, Y: s.Y + dy}
}

func (s State) String() string {
	return fmt.Sprintf("(%d,%d)", s.X, s.Y)
}

// Action is one of the four directional moves. Its value doubles as the index into
// a state's row of action values.
type Action int

const (
	UP Action = iota
	DOWN
	LEFT
	RIGHT
)

// NUM_ACTIONS is the size of the action space, which is the same for every state.
const NUM_ACTIONS = 4

// ACTIONS is the full action space, for iteration purposes.
var ACTIONS = [NUM_ACTIONS]Action{UP, DOWN, LEFT, RIGHT}

// Delta returns the x/y displacement of the action.
func (a Action) Delta() (dx, dy int) {
	switch a {
	case UP:
		return 0, -1
	case DOWN:
		return 0, 1
	case LEFT:
		return -1, 0
	case RIGHT:
		return 1, 0
	}
	panic(fmt.Sprintf("invalid action %d", int(a)))
}

func (a Action) String() string {
	switch a {
	case UP:
		return "up"
	case DOWN:
		return "down"
	case LEFT:
		return "left"
	case RIGHT:
		return "right"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Arrow returns a printable rune for the action, used by console and html views.
func (a Action) Arrow() rune {
	switch a {
	case UP:
		return '^'
	case DOWN:
		return 'v'
	case LEFT:
		return '<'
	case RIGHT:
		return '>'
	}
	return '?'
}

// Transition is a single step of agent experience: in State, do Action, observe Reward.
// The successor is not stored; it is the State of the next newer Transition, or the
// agent's current state for the newest one.
type Transition struct {
	State  State
	Action Action
	Reward float64
}

// Snapshot is the read-only data handed to views per render request. Nothing is ever
// read back from a view.
type Snapshot struct {
	// AgentPosition is nil while the agent is off the grid, between episodes.
	AgentPosition *State `json:"agentPosition"`
	// Exploratory is set if the move that brought the agent here was exploratory.
	Exploratory bool `json:"exploratory"`
	Episode     int  `json:"episode"`
	Tick        int  `json:"tick"`
}

// Signal tells the driver which single operation a tick performed.
type Signal int

const (
	PLANNING_UPDATE Signal = iota
	EXPERIENCE_UPDATE
	ACTION_TAKEN
	EPISODE_FINISHED
	EPISODE_STARTED
)

func (sig Signal) String() string {
	switch sig {
	case PLANNING_UPDATE:
		return "Planning Update"
	case EXPERIENCE_UPDATE:
		return "Experience Update"
	case ACTION_TAKEN:
		return "Action Taken"
	case EPISODE_FINISHED:
		return "Episode Finish"
	case EPISODE_STARTED:
		return "Episode Start"
	}
	return fmt.Sprintf("signal(%d)", int(sig))
}
