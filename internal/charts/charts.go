// Package charts renders run results as PNG plots and an HTML dashboard.
package charts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aisjump/detector/internal/report"
	"github.com/aisjump/detector/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// File names written by WritePNGs.
const (
	TimingFile     = "timing_comparison.png"
	SpeedHistFile  = "speed_distribution.png"
	TopVesselsFile = "top_vessels.png"
	DashboardFile  = "dashboard.html"
)

// SpeedBinCount is the number of histogram bins for anomaly speeds.
const SpeedBinCount = 20

// Data is what the charts are drawn from.
type Data struct {
	RunID  string
	Timing core.TimingResult
	Events []core.AnomalyEvent
}

// WritePNGs renders the three PNG charts into dir and returns their paths.
func WritePNGs(dir string, d Data) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timingPath := filepath.Join(dir, TimingFile)
	if err := TimingPNG(timingPath, d.Timing); err != nil {
		return nil, err
	}
	histPath := filepath.Join(dir, SpeedHistFile)
	if err := SpeedHistogramPNG(histPath, d.Events); err != nil {
		return nil, err
	}
	topPath := filepath.Join(dir, TopVesselsFile)
	if err := TopVesselsPNG(topPath, report.TopVessels(d.Events, report.TopN)); err != nil {
		return nil, err
	}
	return []string{timingPath, histPath, topPath}, nil
}

// TimingPNG draws sequential vs parallel elapsed time as two bars.
func TimingPNG(path string, t core.TimingResult) error {
	p := plot.New()
	p.Title.Text = "Execution time: " + speedupLabel(t)
	p.Y.Label.Text = "Seconds"

	bars, err := plotter.NewBarChart(plotter.Values{t.SequentialSeconds, t.ParallelSeconds}, vg.Points(40))
	if err != nil {
		return fmt.Errorf("timing chart: %w", err)
	}
	p.Add(bars)
	p.NominalX("Sequential", "Parallel")

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// SpeedHistogramPNG draws the distribution of anomaly speeds. With no events
// an empty, titled plot is written.
func SpeedHistogramPNG(path string, events []core.AnomalyEvent) error {
	p := plot.New()
	p.Title.Text = "Distribution of anomaly speeds"
	p.X.Label.Text = "Speed (km/h)"
	p.Y.Label.Text = "Count"

	speeds := report.Speeds(events)
	if len(speeds) == 0 {
		p.Title.Text += " (no anomalies)"
	} else {
		hist, err := plotter.NewHist(plotter.Values(speeds), SpeedBinCount)
		if err != nil {
			return fmt.Errorf("speed histogram: %w", err)
		}
		p.Add(hist)
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// TopVesselsPNG draws anomaly counts for the ranked vessels.
func TopVesselsPNG(path string, top []report.VesselCount) error {
	p := plot.New()
	p.Title.Text = "Top vessels by anomaly count"
	p.Y.Label.Text = "Anomalies"

	if len(top) == 0 {
		p.Title.Text += " (no anomalies)"
	} else {
		values := make(plotter.Values, len(top))
		names := make([]string, len(top))
		for i, vc := range top {
			values[i] = float64(vc.Count)
			names[i] = strconv.FormatInt(vc.VesselID, 10)
		}
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return fmt.Errorf("top vessels chart: %w", err)
		}
		p.Add(bars)
		p.NominalX(names...)
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = -1
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// SpeedBins splits sorted speeds into n equal-width bins between the
// minimum and maximum. It returns the lower edge and count of each bin.
func SpeedBins(sorted []float64, n int) (lower, counts []float64) {
	if len(sorted) == 0 || n < 1 {
		return nil, nil
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	dividers := floats.Span(make([]float64, n+1), lo, math.Nextafter(hi, math.Inf(1)))
	counts = stat.Histogram(nil, dividers, sorted, nil)
	return dividers[:n], counts
}

func speedupLabel(t core.TimingResult) string {
	if t.IsInfinite() {
		return "speedup +Inf"
	}
	return fmt.Sprintf("speedup %.2fx", t.Speedup)
}
