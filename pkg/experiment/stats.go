package experiment

import (
	"fmt"
	"math"
	"os"

	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const statsHeader = "Episode,Return,Steps,Success\n"

// Stats aggregates the returns of finished episodes. StdReturn is the
// population standard deviation; SuccessRate is a fraction in [0, 1].
type Stats struct {
	Episodes    int
	MeanReturn  float64
	StdReturn   float64
	MinReturn   float64
	MaxReturn   float64
	MeanSteps   float64
	SuccessRate float64
}

func (e *Experiment) Stats() Stats {
	return Summarize(e.Results())
}

func Summarize(results []EpisodeResult) Stats {
	if len(results) == 0 {
		return Stats{}
	}

	s := Stats{
		Episodes:  len(results),
		MinReturn: math.MaxFloat64,
		MaxReturn: -math.MaxFloat64,
	}
	var total, steps float64
	successes := 0
	for _, r := range results {
		ret := float64(r.Return)
		total += ret
		steps += float64(r.Steps)
		if ret < s.MinReturn {
			s.MinReturn = ret
		}
		if ret > s.MaxReturn {
			s.MaxReturn = ret
		}
		if r.Success {
			successes++
		}
	}

	n := float64(len(results))
	s.MeanReturn = total / n
	s.MeanSteps = steps / n
	s.SuccessRate = float64(successes) / n

	var sumSquares float64
	for _, r := range results {
		diff := float64(r.Return) - s.MeanReturn
		sumSquares += diff * diff
	}
	s.StdReturn = math.Sqrt(sumSquares / n)

	return s
}

func (e *Experiment) openStatsFile() *os.File {
	if e.statsPath == "" {
		return nil
	}
	f, err := os.Create(e.statsPath)
	if err != nil {
		e.logger.Warnf("failed to create stats file: %v", err)
		return nil
	}
	if _, err := f.WriteString(statsHeader); err != nil {
		e.logger.Warnf("failed to write to stats file: %v", err)
	}
	return f
}

func writeStatsRow(f *os.File, r EpisodeResult, logger *logging.Logger) {
	if f == nil {
		return
	}
	line := fmt.Sprintf("%d,%.2f,%d,%t\n", r.Episode, r.Return, r.Steps, r.Success)
	if _, err := f.WriteString(line); err != nil {
		logger.Warnf("failed to write to stats file: %v", err)
	}
}

func writeReturnChart(path, title string, results []EpisodeResult) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "return per episode",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "return"}),
	)

	episodes := make([]string, 0, len(results))
	returns := make([]opts.LineData, 0, len(results))
	for _, r := range results {
		episodes = append(episodes, fmt.Sprintf("%d", r.Episode))
		returns = append(returns, opts.LineData{Value: r.Return})
	}
	line.SetXAxis(episodes).AddSeries("return", returns)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(f)
}
