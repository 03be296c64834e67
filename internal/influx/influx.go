// Package influx publishes per-run detection metrics to InfluxDB, falling
// back to a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/aisjump/detector/internal/report"
)

// Measurement names.
const (
	RunMeasurement    = "aisjump_run"
	VesselMeasurement = "aisjump_vessel"
)

// Config holds connection settings.
type Config struct {
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
	// Timeout bounds each HTTP request; zero means 10s.
	Timeout time.Duration
}

// Publisher writes run metrics to InfluxDB or to the backup file.
type Publisher struct {
	cfg    Config
	logger zerolog.Logger

	client  influxdb2.Client
	writer  influxdb2_api.WriteAPIBlocking
	isValid bool

	backupFile   *os.File
	backupWriter *gzip.Writer
}

// NewPublisher creates a publisher. Call Connect before Publish.
func NewPublisher(cfg Config, log zerolog.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Publisher{cfg: cfg, logger: log}
}

// Connect pings the server. When it is not reachable the backup file is
// opened instead; Connect fails only if neither sink is usable.
func (p *Publisher) Connect(ctx context.Context) error {
	p.client = influxdb2.NewClientWithOptions(
		p.cfg.URL,
		p.cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(math.Ceil(p.cfg.Timeout.Seconds()))),
	)

	running, err := p.client.Ping(ctx)
	if err == nil && running {
		p.isValid = true
		p.writer = p.client.WriteAPIBlocking(p.cfg.Org, p.cfg.Bucket)
		p.logger.Info().Str("url", p.cfg.URL).Str("bucket", p.cfg.Bucket).Msg("InfluxDB client initialized")
		return nil
	}

	p.isValid = false
	if p.cfg.BackupPath == "" {
		if err == nil {
			err = errors.New("server not ready")
		}
		return fmt.Errorf("influxdb unreachable and no backup path configured: %w", err)
	}

	p.logger.Warn().Err(err).Str("backupPath", p.cfg.BackupPath).
		Msg("InfluxDB unreachable, writing to backup file")

	file, ferr := os.OpenFile(p.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if ferr != nil {
		return fmt.Errorf("error creating backup file: %w", ferr)
	}
	p.backupFile = file
	p.backupWriter = gzip.NewWriter(file)
	return nil
}

// IsValid reports whether points go to the server rather than the backup.
func (p *Publisher) IsValid() bool {
	return p.isValid
}

// Publish writes the run summary as points.
func (p *Publisher) Publish(ctx context.Context, s report.Summary, at time.Time) error {
	points := Points(s, at)

	if p.isValid {
		if err := p.writer.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("error writing to InfluxDB: %w", err)
		}
		p.logger.Debug().Int("points", len(points)).Msg("run metrics published")
		return nil
	}

	if p.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	for _, pt := range points {
		if _, err := p.backupWriter.Write([]byte(PointLine(pt))); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	}
	p.logger.Debug().Int("points", len(points)).Msg("run metrics written to backup")
	return nil
}

// Close flushes the backup file and releases the client.
func (p *Publisher) Close() error {
	var errs []error
	if p.backupWriter != nil {
		errs = append(errs, p.backupWriter.Close())
		p.backupWriter = nil
	}
	if p.backupFile != nil {
		errs = append(errs, p.backupFile.Close())
		p.backupFile = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	return errors.Join(errs...)
}

// Points converts a summary into one run point plus one point per top vessel.
// An infinite speedup is omitted from the fields.
func Points(s report.Summary, at time.Time) []*influxdb2_write.Point {
	fields := map[string]interface{}{
		"sequential_seconds": s.Timing.SequentialSeconds,
		"parallel_seconds":   s.Timing.ParallelSeconds,
		"vessels":            s.Vessels,
		"anomalies":          s.Anomalies,
		"workers":            s.Workers,
		"rows_read":          s.Input.RowsRead,
		"rows_kept":          s.Input.RowsKept,
		"rows_dropped":       s.Input.Dropped(),
	}
	if !s.Timing.IsInfinite() {
		fields["speedup"] = s.Timing.Speedup
	}
	if s.Speed != nil {
		fields["speed_mean_kmh"] = s.Speed.Mean
		fields["speed_max_kmh"] = s.Speed.Max
	}

	points := []*influxdb2_write.Point{
		influxdb2.NewPoint(RunMeasurement, map[string]string{"run_id": s.RunID}, fields, at),
	}
	for _, vc := range s.TopVessels {
		points = append(points, influxdb2.NewPoint(
			VesselMeasurement,
			map[string]string{"run_id": s.RunID, "mmsi": strconv.FormatInt(vc.VesselID, 10)},
			map[string]interface{}{"anomalies": vc.Count},
			at,
		))
	}
	return points
}

// PointLine renders a point as nanosecond-precision line protocol,
// newline terminated.
func PointLine(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}
