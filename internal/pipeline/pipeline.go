// Package pipeline runs one complete detection job: read, detect with both
// strategies, cross-check and write every configured output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/aisjump/detector/internal/charts"
	"github.com/aisjump/detector/internal/config"
	"github.com/aisjump/detector/internal/detector"
	"github.com/aisjump/detector/internal/influx"
	"github.com/aisjump/detector/internal/ingest"
	"github.com/aisjump/detector/internal/logging"
	"github.com/aisjump/detector/internal/report"
	"github.com/aisjump/detector/internal/runner"
	"github.com/aisjump/detector/pkg/core"
)

// ErrMismatch is returned when the two strategies disagree.
var ErrMismatch = errors.New("sequential and concurrent results differ")

// GeoJSONFile is the name of the segment export.
const GeoJSONFile = "anomalies.geojson"

// Options configures a run.
type Options struct {
	Input     config.InputConfig
	Detection config.DetectionConfig
	Output    config.OutputConfig
	Influx    config.InfluxConfig

	// RunID is generated when empty.
	RunID string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// RunnerLogger defaults to Logger.
	RunnerLogger runner.Logger
	// InfluxLogger is used by the metrics publisher.
	InfluxLogger zerolog.Logger
	// MeterProvider overrides the global OTel meter provider.
	MeterProvider metric.MeterProvider
}

// Result is what a run produced.
type Result struct {
	RunID  string
	Stats  ingest.Stats
	Tracks int
	Events []core.AnomalyEvent
	Timing core.TimingResult
	Files  []string
}

// Run executes the job. ctx bounds reading the input and publishing to
// InfluxDB; detection itself runs to completion once started.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Detection.Validate(); err != nil {
		return nil, err
	}
	if opts.Input.Path == "" {
		return nil, errors.New("no input path given")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if _, ok := log.Handler().(*logging.ContextHandler); !ok {
		log = slog.New(logging.NewContextHandler(log.Handler(), logging.RunIDProvider))
	}
	ctx = logging.WithRunID(ctx, opts.RunID)

	reader := ingest.NewReader(ingest.Config{
		BatchSize:        opts.Input.BatchSize,
		TimestampLayouts: opts.Input.TimestampLayouts,
	})
	records, stats, err := reader.ReadFile(ctx, opts.Input.Path)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "input loaded",
		"path", opts.Input.Path,
		"rowsRead", stats.RowsRead,
		"rowsKept", stats.RowsKept,
		"dropped", stats.Dropped(),
		"batches", stats.Batches,
	)

	runnerOpts := []runner.Option{runner.WithWorkers(opts.Detection.WorkerCount)}
	if opts.RunnerLogger != nil {
		runnerOpts = append(runnerOpts, runner.WithLogger(opts.RunnerLogger))
	} else {
		runnerOpts = append(runnerOpts, runner.WithLogger(log))
	}
	if opts.MeterProvider != nil {
		runnerOpts = append(runnerOpts, runner.WithMeterProvider(opts.MeterProvider))
	}
	det := detector.New(detector.Config{
		DistanceThresholdKm:  opts.Detection.DistanceThresholdKm,
		VelocityThresholdKmh: opts.Detection.VelocityThresholdKmh,
		TimeDiffUnit:         opts.Detection.TimeDiffUnit,
	})
	r, err := runner.New(det, runnerOpts...)
	if err != nil {
		return nil, err
	}

	seq, par, timing := r.Benchmark(records)
	if seq.Err != nil || par.Err != nil {
		return nil, errors.Join(seq.Err, par.Err)
	}

	events := par.Events
	core.SortEvents(events)
	reference := slices.Clone(seq.Events)
	core.SortEvents(reference)
	if !sameEvents(reference, events) {
		log.ErrorContext(ctx, "strategy results differ", "sequential", len(reference), "concurrent", len(events))
		return nil, fmt.Errorf("%w: %d vs %d events", ErrMismatch, len(reference), len(events))
	}

	log.InfoContext(ctx, "detection complete",
		"vessels", par.Tracks,
		"anomalies", len(events),
		"sequentialSeconds", timing.SequentialSeconds,
		"parallelSeconds", timing.ParallelSeconds,
		"speedup", timing.Speedup,
	)

	res := &Result{
		RunID:  opts.RunID,
		Stats:  stats,
		Tracks: par.Tracks,
		Events: events,
		Timing: timing,
	}
	summary := report.BuildSummary(opts.RunID, stats, par.Tracks, r.Workers(), events, timing)

	if err := writeOutputs(opts.Output, res, summary); err != nil {
		return nil, err
	}
	for _, f := range res.Files {
		log.DebugContext(ctx, "output written", "file", f)
	}

	if opts.Influx.Enabled {
		if err := publish(ctx, opts, summary); err != nil {
			log.WarnContext(ctx, "failed to publish run metrics", "error", err)
		}
	}

	return res, nil
}

func writeOutputs(out config.OutputConfig, res *Result, summary report.Summary) error {
	dir := out.Dir
	name := out.ReportName
	if name == "" {
		name = "spoofing_report.csv"
	}

	reportPath := filepath.Join(dir, name)
	if err := report.WriteCSVFile(reportPath, res.Events, out.TimestampLayout); err != nil {
		return err
	}
	res.Files = append(res.Files, reportPath)

	if out.Summary {
		path, err := report.WriteSummary(dir, summary, out.CompressSummary)
		if err != nil {
			return err
		}
		res.Files = append(res.Files, path)
	}

	if out.GeoJSON {
		srid := out.GeoJSONCRS
		if srid == 0 {
			srid = 4326
		}
		path := filepath.Join(dir, GeoJSONFile)
		if err := report.WriteGeoJSONFile(path, res.Events, srid, out.TimestampLayout); err != nil {
			return err
		}
		res.Files = append(res.Files, path)
	}

	data := charts.Data{RunID: res.RunID, Timing: res.Timing, Events: res.Events}
	if out.Charts {
		paths, err := charts.WritePNGs(dir, data)
		if err != nil {
			return err
		}
		res.Files = append(res.Files, paths...)
	}
	if out.HTML {
		path := filepath.Join(dir, charts.DashboardFile)
		if err := charts.WriteDashboardFile(path, data); err != nil {
			return err
		}
		res.Files = append(res.Files, path)
	}
	return nil
}

func publish(ctx context.Context, opts Options, summary report.Summary) error {
	p := influx.NewPublisher(influx.Config{
		URL:        opts.Influx.URL,
		Token:      opts.Influx.Token,
		Org:        opts.Influx.Org,
		Bucket:     opts.Influx.Bucket,
		BackupPath: opts.Influx.BackupPath,
	}, opts.InfluxLogger)

	if err := p.Connect(ctx); err != nil {
		return errors.Join(err, p.Close())
	}
	err := p.Publish(ctx, summary, time.Now())
	return errors.Join(err, p.Close())
}

func sameEvents(a, b []core.AnomalyEvent) bool {
	return slices.EqualFunc(a, b, func(x, y core.AnomalyEvent) bool {
		return x.VesselID == y.VesselID &&
			x.Timestamp.Equal(y.Timestamp) &&
			x.DistanceKm == y.DistanceKm &&
			x.SpeedKmh == y.SpeedKmh &&
			x.From == y.From &&
			x.To == y.To
	})
}
