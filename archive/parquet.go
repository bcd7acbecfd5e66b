// archive exports the results of a run: episode returns and the learned action values as
// parquet, and the learning curve as an html chart.
package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"playground/models"
	"playground/reinforcement"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ReturnRow is the return of one finished episode.
type ReturnRow struct {
	RunID   string  `parquet:"run_id,dict" json:"run_id"`
	Episode int32   `parquet:"episode" json:"episode"`
	Return  float64 `parquet:"return" json:"return"`
}

// ValueRow is one entry of the action-value table.
type ValueRow struct {
	RunID  string  `parquet:"run_id,dict" json:"run_id"`
	X      int32   `parquet:"x" json:"x"`
	Y      int32   `parquet:"y" json:"y"`
	Action string  `parquet:"action,dict" json:"action"`
	Value  float64 `parquet:"value" json:"value"`
	Greedy bool    `parquet:"greedy" json:"greedy"`
	// Visits is only counted under count-based step sizes.
	Visits int32 `parquet:"visits" json:"visits"`
}

// WriteReturns writes one row per finished episode, numbered from 1.
func WriteReturns(outPath string, runID string, returns []float64) error {
	rows := make([]ReturnRow, len(returns))
	for i, ret := range returns {
		rows[i] = ReturnRow{
			RunID:   runID,
			Episode: int32(i + 1),
			Return:  ret,
		}
	}
	return writeParquet(outPath, rows, "episode_return_v1")
}

// WriteValues writes one row per (state, action) of the agent's table. The agent must not
// be ticking concurrently, since visit counts are read without synchronization.
func WriteValues(outPath string, runID string, agent *reinforcement.Agent) error {
	store, engine := agent.Store(), agent.Engine()
	width, height := store.Shape()

	rows := make([]ValueRow, 0, width*height*models.NUM_ACTIONS)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			s := models.State{X: x, Y: y}
			greedy := map[models.Action]bool{}
			for _, action := range store.GreedySet(s) {
				greedy[action] = true
			}
			values := store.Values(s)
			for _, action := range models.ACTIONS {
				rows = append(rows, ValueRow{
					RunID:  runID,
					X:      int32(x),
					Y:      int32(y),
					Action: action.String(),
					Value:  values[action],
					Greedy: greedy[action],
					Visits: int32(engine.Visits(s, action)),
				})
			}
		}
	}
	return writeParquet(outPath, rows, "action_value_v1")
}

// ReadReturns reads back a file written by WriteReturns.
func ReadReturns(path string) ([]ReturnRow, error) {
	return parquet.ReadFile[ReturnRow](path)
}

// ReadValues reads back a file written by WriteValues.
func ReadValues(path string) ([]ValueRow, error) {
	return parquet.ReadFile[ValueRow](path)
}

func writeParquet[T any](outPath string, rows []T, schema string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Write to a temp file and rename atomically.
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}
