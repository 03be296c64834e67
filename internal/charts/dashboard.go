package charts

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aisjump/detector/internal/report"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteDashboard renders one HTML page with the timing, speed distribution
// and top vessel charts.
func WriteDashboard(w io.Writer, d Data) error {
	page := components.NewPage()
	page.AddCharts(timingBar(d), speedBar(d), topVesselBar(d))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}

// WriteDashboardFile renders the dashboard into path.
func WriteDashboardFile(path string, d Data) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	if err := WriteDashboard(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newBar(title, subtitle string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "aisjump", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	return bar
}

func timingBar(d Data) *charts.Bar {
	bar := newBar("Execution time (s)", speedupLabel(d.Timing))
	bar.SetXAxis([]string{"Sequential", "Parallel"}).
		AddSeries("seconds", []opts.BarData{
			{Value: d.Timing.SequentialSeconds},
			{Value: d.Timing.ParallelSeconds},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func speedBar(d Data) *charts.Bar {
	bar := newBar("Anomaly speeds (km/h)", fmt.Sprintf("run %s, %d anomalies", d.RunID, len(d.Events)))

	lower, counts := SpeedBins(report.Speeds(d.Events), SpeedBinCount)
	labels := make([]string, len(lower))
	data := make([]opts.BarData, len(counts))
	for i := range lower {
		labels[i] = strconv.FormatFloat(lower[i], 'f', 0, 64)
		data[i] = opts.BarData{Value: counts[i]}
	}
	bar.SetXAxis(labels).AddSeries("anomalies", data)
	return bar
}

func topVesselBar(d Data) *charts.Bar {
	bar := newBar("Top vessels by anomaly count", "")

	top := report.TopVessels(d.Events, report.TopN)
	labels := make([]string, len(top))
	data := make([]opts.BarData, len(top))
	for i, vc := range top {
		labels[i] = strconv.FormatInt(vc.VesselID, 10)
		data[i] = opts.BarData{Value: vc.Count}
	}
	bar.SetXAxis(labels).AddSeries("anomalies", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
