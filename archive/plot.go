package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// PlotReturns renders the episode returns, and their moving average over window episodes,
// as an html line chart.
func PlotReturns(outPath string, title string, returns []float64, window int) error {
	if window < 1 {
		window = 1
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d episodes", len(returns)),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	episodes := make([]string, len(returns))
	for i := range returns {
		episodes[i] = fmt.Sprintf("%d", i+1)
	}

	raw := make([]opts.LineData, 0, len(returns))
	for _, ret := range returns {
		raw = append(raw, opts.LineData{Value: ret})
	}
	smoothed := make([]opts.LineData, 0, len(returns))
	for _, avg := range MovingAverage(returns, window) {
		smoothed = append(smoothed, opts.LineData{Value: avg})
	}

	line.SetXAxis(episodes).
		AddSeries("return", raw).
		AddSeries(fmt.Sprintf("mean of last %d", window), smoothed)

	page := components.NewPage()
	page.AddCharts(
		line,
	)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	defer f.Close()

	if err = page.Render(f); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}

// MovingAverage returns, for each index, the mean of the up to window values ending there.
func MovingAverage(values []float64, window int) []float64 {
	avgs := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		avgs[i] = sum / float64(n)
	}
	return avgs
}
