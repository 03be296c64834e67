package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisjump/detector/internal/charts"
	"github.com/aisjump/detector/internal/config"
	"github.com/aisjump/detector/internal/ingest"
	"github.com/aisjump/detector/internal/logging"
	"github.com/aisjump/detector/pkg/core"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aisdk.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testOptions(t *testing.T, input string) (Options, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return Options{
		Input: config.InputConfig{Path: input},
		Detection: config.DetectionConfig{
			DistanceThresholdKm:  100,
			VelocityThresholdKmh: 1000,
			WorkerCount:          4,
			TimeDiffUnit:         1,
		},
		Output: config.OutputConfig{
			Dir:             filepath.Join(t.TempDir(), "out"),
			ReportName:      "spoofing_report.csv",
			TimestampLayout: "2006-01-02 15:04:05",
		},
		RunID:        "run-test",
		Logger:       slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		InfluxLogger: zerolog.Nop(),
	}, &logs
}

func readReport(t *testing.T, opts Options) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(opts.Output.Dir, opts.Output.ReportName))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

const header = "# Timestamp,Type of mobile,MMSI,Latitude,Longitude\n"

func TestRun_HeaderOnly(t *testing.T) {
	opts, _ := testOptions(t, writeInput(t, header))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Tracks)
	assert.Empty(t, res.Events)
	assert.GreaterOrEqual(t, res.Timing.Speedup, 0.0)

	rows := readReport(t, opts)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"MMSI", "Timestamp", "Distance(km)", "Speed(km/h)"}, rows[0])
}

func TestRun_TwoVessels(t *testing.T) {
	// Vessel A jumps out and back; vessel B barely moves.
	input := header +
		"27/02/2024 00:00:00,Class A,219000001,0,0\n" +
		"27/02/2024 00:00:00,Class A,219000002,55,10\n" +
		"27/02/2024 00:01:00,Class A,219000001,0,5\n" +
		"27/02/2024 00:01:00,Class A,219000002,55.0001,10.0001\n" +
		"27/02/2024 00:02:00,Class A,219000001,0,0\n" +
		"27/02/2024 00:02:00,Class A,219000002,55.0002,10.0002\n"
	opts, logs := testOptions(t, writeInput(t, input))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "run-test", res.RunID)
	assert.Equal(t, 2, res.Tracks)
	assert.Equal(t, 6, res.Stats.RowsKept)
	require.Len(t, res.Events, 2)

	rows := readReport(t, opts)
	require.Len(t, rows, 3)
	for _, row := range rows[1:] {
		assert.Equal(t, "219000001", row[0])
	}
	assert.Equal(t, "2024-02-27 00:01:00", rows[1][1])
	assert.Equal(t, "2024-02-27 00:02:00", rows[2][1])
	assert.Equal(t, rows[1][2], rows[1][3])

	assert.Contains(t, logs.String(), "run=run-test")
	assert.Contains(t, logs.String(), "detection complete")
}

func TestRun_RunIDLoggedOnce(t *testing.T) {
	opts, _ := testOptions(t, writeInput(t, header))
	var logs bytes.Buffer
	text := slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})
	opts.Logger = slog.New(logging.NewContextHandler(text, logging.RunIDProvider))

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		assert.Equal(t, 1, strings.Count(line, "run=run-test"), line)
	}
}

func TestRun_AllOutputs(t *testing.T) {
	input := header +
		"27/02/2024 00:00:00,Class A,219000001,10,10\n" +
		"27/02/2024 00:01:00,Class A,219000001,12,12\n"
	opts, _ := testOptions(t, writeInput(t, input))
	opts.Output.Summary = true
	opts.Output.CompressSummary = true
	opts.Output.GeoJSON = true
	opts.Output.GeoJSONCRS = 3857
	opts.Output.Charts = true
	opts.Output.HTML = true

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	want := []string{
		"spoofing_report.csv",
		"summary.json.gz",
		GeoJSONFile,
		charts.TimingFile,
		charts.SpeedHistFile,
		charts.TopVesselsFile,
		charts.DashboardFile,
	}
	require.Len(t, res.Files, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(opts.Output.Dir, name), res.Files[i])
		_, err := os.Stat(res.Files[i])
		assert.NoError(t, err, name)
	}
}

func TestRun_InfluxBackup(t *testing.T) {
	input := header + "27/02/2024 00:00:00,Class A,219000001,10,10\n"
	opts, _ := testOptions(t, writeInput(t, input))
	backup := filepath.Join(t.TempDir(), "metrics.lp.gz")
	opts.Influx = config.InfluxConfig{Enabled: true, URL: "http://127.0.0.1:1", BackupPath: backup}

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRun_InfluxFailureIsNotFatal(t *testing.T) {
	input := header + "27/02/2024 00:00:00,Class A,219000001,10,10\n"
	opts, logs := testOptions(t, writeInput(t, input))
	opts.Influx = config.InfluxConfig{Enabled: true, URL: "http://127.0.0.1:1"}

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "failed to publish run metrics")
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing input file", func(t *testing.T) {
		opts, _ := testOptions(t, filepath.Join(t.TempDir(), "missing.csv"))
		_, err := Run(context.Background(), opts)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no input path", func(t *testing.T) {
		opts, _ := testOptions(t, "")
		_, err := Run(context.Background(), opts)
		assert.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		opts, _ := testOptions(t, writeInput(t, "MMSI,Latitude,Longitude\n1,2,3\n"))
		_, err := Run(context.Background(), opts)
		assert.ErrorIs(t, err, ingest.ErrMissingColumn)
	})

	t.Run("invalid detection config", func(t *testing.T) {
		opts, _ := testOptions(t, writeInput(t, header))
		opts.Detection.WorkerCount = 0
		_, err := Run(context.Background(), opts)
		assert.True(t, errors.Is(err, config.ErrInvalid))
	})

	t.Run("cancelled before read", func(t *testing.T) {
		input := header + "27/02/2024 00:00:00,Class A,219000001,10,10\n"
		opts, _ := testOptions(t, writeInput(t, input))
		opts.Input.BatchSize = 1
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, opts)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSameEvents(t *testing.T) {
	ts := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	a := []core.AnomalyEvent{{VesselID: 1, Timestamp: ts, DistanceKm: 200, SpeedKmh: 200}}
	b := []core.AnomalyEvent{{VesselID: 1, Timestamp: ts.In(time.FixedZone("X", 3600)), DistanceKm: 200, SpeedKmh: 200}}

	assert.True(t, sameEvents(nil, nil))
	assert.True(t, sameEvents(a, b))
	assert.False(t, sameEvents(a, nil))

	b[0].To = core.Position{Latitude: 1}
	assert.False(t, sameEvents(a, b))
}
