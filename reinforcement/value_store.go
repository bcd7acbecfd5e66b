package reinforcement

import (
	"sync"

	"playground/models"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ValueStore owns the action-value table Q[x][y][action] and the greedy action set of
// every state. Reads happen from the agent's policies and, concurrently, from views;
// writes only from the update engine. A value write and the greedy recomputation for
// its state happen under one lock, so a reader never sees a new value paired with a
// stale greedy set.
//
// Greedy sets use exact float equality. Two values that should be equal but differ by
// rounding error are not tied; this is a known limitation, not patched with a tolerance.
type ValueStore struct {
	mu     sync.RWMutex
	values [][][models.NUM_ACTIONS]float64
	greedy [][][]models.Action
}

// NewValueStore builds a dense table for a width x height grid, drawing every initial
// action value independently from Normal(mean, sigma) using src.
func NewValueStore(width, height int, mean, sigma float64, src rand.Source) *ValueStore {
	normal := distuv.Normal{Mu: mean, Sigma: sigma, Src: src}

	store := &ValueStore{
		values: make([][][models.NUM_ACTIONS]float64, width),
		greedy: make([][][]models.Action, width),
	}
	for x := 0; x < width; x++ {
		store.values[x] = make([][models.NUM_ACTIONS]float64, height)
		store.greedy[x] = make([][]models.Action, height)
		for y := 0; y < height; y++ {
			for _, action := range models.ACTIONS {
				store.values[x][y][action] = normal.Rand()
			}
			store.updateGreedy(models.State{X: x, Y: y})
		}
	}
	return store
}

// Shape returns the grid dimensions the table was built for.
func (store *ValueStore) Shape() (width, height int) {
	if len(store.values) == 0 {
		return 0, 0
	}
	return len(store.values), len(store.values[0])
}

func (store *ValueStore) Get(s models.State, a models.Action) float64 {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.values[s.X][s.Y][a]
}

// Set overwrites Q(s,a) and recomputes the greedy set of s.
func (store *ValueStore) Set(s models.State, a models.Action, value float64) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.values[s.X][s.Y][a] = value
	store.updateGreedy(s)
}

// GreedySet returns a copy of the actions tied for the maximum value at s, in action order.
func (store *ValueStore) GreedySet(s models.State) []models.Action {
	store.mu.RLock()
	defer store.mu.RUnlock()
	greedy := store.greedy[s.X][s.Y]
	return append(make([]models.Action, 0, len(greedy)), greedy...)
}

// Values returns a copy of the action values at s, indexed by action.
func (store *ValueStore) Values(s models.State) []float64 {
	store.mu.RLock()
	defer store.mu.RUnlock()
	row := store.values[s.X][s.Y]
	return append([]float64(nil), row[:]...)
}

// Max returns the maximum action value at s.
func (store *ValueStore) Max(s models.State) float64 {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.values[s.X][s.Y][store.greedy[s.X][s.Y][0]]
}

// Caller must hold the write lock.
func (store *ValueStore) updateGreedy(s models.State) {
	row := &store.values[s.X][s.Y]
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	greedy := store.greedy[s.X][s.Y][:0]
	for _, action := range models.ACTIONS {
		if row[action] == maxVal {
			greedy = append(greedy, action)
		}
	}
	// NaN compares unequal to everything; the set must never be empty.
	if len(greedy) == 0 {
		greedy = append(greedy, models.ACTIONS[:]...)
	}
	store.greedy[s.X][s.Y] = greedy
}
