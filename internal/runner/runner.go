// Package runner executes detection passes and measures how long they take.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aisjump/detector/internal/track"
	"github.com/aisjump/detector/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aisjump/detector/internal/runner"

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the concurrent pool size.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithMeterProvider overrides the global OTel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Runner) {
		r.meterProvider = mp
	}
}

// Pass is the outcome of one strategy over one record set.
type Pass struct {
	Strategy string
	Tracks   int
	Events   []core.AnomalyEvent
	Elapsed  time.Duration
	Err      error
}

// Runner builds the strategies and times them.
type Runner struct {
	detector      Detector
	workers       int
	logger        Logger
	meterProvider metric.MeterProvider

	tracksProcessed metric.Int64Counter
	anomalies       metric.Int64Counter
	passDuration    metric.Float64Histogram
}

// New creates a Runner around det. Metrics go to the global OTel meter
// provider (no-op if not configured) unless WithMeterProvider is given.
func New(det Detector, opts ...Option) (*Runner, error) {
	if det == nil {
		return nil, errors.New("runner: nil detector")
	}
	r := &Runner{
		detector: det,
		workers:  DefaultWorkerCount,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		return nil, fmt.Errorf("runner: worker count must be at least 1, got %d", r.workers)
	}

	var m metric.Meter
	if r.meterProvider != nil {
		m = r.meterProvider.Meter(instrumentationName)
	} else {
		m = otel.Meter(instrumentationName)
	}

	var err error
	r.tracksProcessed, err = m.Int64Counter(
		"runner.tracks.processed",
		metric.WithDescription("Vessel tracks processed by a detection pass"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracks counter: %w", err)
	}

	r.anomalies, err = m.Int64Counter(
		"runner.anomalies.detected",
		metric.WithDescription("Anomaly events produced by a detection pass"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating anomalies counter: %w", err)
	}

	r.passDuration, err = m.Float64Histogram(
		"runner.pass.duration",
		metric.WithDescription("Wall-clock duration of a detection pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return r, nil
}

// Workers returns the concurrent pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// Sequential returns the single-goroutine strategy.
func (r *Runner) Sequential() Strategy {
	return &Sequential{Detector: r.detector}
}

// Concurrent returns the worker-pool strategy.
func (r *Runner) Concurrent() Strategy {
	return &Concurrent{Detector: r.detector, Workers: r.workers}
}

// Measure groups records into tracks and runs s over them. Elapsed covers
// both the grouping and the detection.
func (r *Runner) Measure(s Strategy, records []core.PositionRecord) Pass {
	r.logger.Debug("starting pass", "strategy", s.Name(), "records", len(records))

	start := time.Now()
	tracks := track.Group(records)
	events, err := s.Run(tracks)
	elapsed := time.Since(start)

	pass := Pass{
		Strategy: s.Name(),
		Tracks:   len(tracks),
		Events:   events,
		Elapsed:  elapsed,
		Err:      err,
	}

	attrs := metric.WithAttributes(attribute.String("strategy", s.Name()))
	ctx := context.Background()
	r.passDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		r.logger.Error("pass failed", "strategy", s.Name(), "duration", elapsed, "error", err)
		return pass
	}
	r.tracksProcessed.Add(ctx, int64(len(tracks)), attrs)
	r.anomalies.Add(ctx, int64(len(events)), attrs)

	r.logger.Info("pass complete", "strategy", s.Name(), "tracks", len(tracks), "events", len(events), "duration", elapsed)
	return pass
}

// Benchmark runs the sequential and the concurrent pass independently over
// the same records. A failure in one pass does not prevent the other.
func (r *Runner) Benchmark(records []core.PositionRecord) (seq, par Pass, timing core.TimingResult) {
	seq = r.Measure(r.Sequential(), records)
	par = r.Measure(r.Concurrent(), records)

	timing = core.TimingResult{
		SequentialSeconds: seq.Elapsed.Seconds(),
		ParallelSeconds:   par.Elapsed.Seconds(),
		Speedup:           Speedup(seq.Elapsed.Seconds(), par.Elapsed.Seconds()),
	}
	return seq, par, timing
}

// Speedup returns seq/par, or +Inf when par is zero. It is never negative.
func Speedup(seq, par float64) float64 {
	if par <= 0 {
		return math.Inf(1)
	}
	if seq <= 0 {
		return 0
	}
	return seq / par
}
