package influx

import (
	"compress/gzip"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisjump/detector/internal/ingest"
	"github.com/aisjump/detector/internal/report"
	"github.com/aisjump/detector/pkg/core"
)

var at = time.Date(2024, 2, 27, 12, 0, 0, 0, time.UTC)

func sampleSummary() report.Summary {
	return report.Summary{
		RunID:      "run-7",
		Input:      ingest.Stats{RowsRead: 100, RowsKept: 90, DroppedMissing: 10},
		Vessels:    12,
		Anomalies:  3,
		Workers:    4,
		Timing:     core.TimingResult{SequentialSeconds: 2, ParallelSeconds: 1, Speedup: 2},
		Speed:      &report.SpeedStats{Mean: 500, Max: 900},
		TopVessels: []report.VesselCount{{VesselID: 219000001, Count: 2}, {VesselID: 219000002, Count: 1}},
	}
}

func TestPoints(t *testing.T) {
	points := Points(sampleSummary(), at)
	require.Len(t, points, 3)

	run := points[0]
	assert.Equal(t, RunMeasurement, run.Name())
	fields := map[string]any{}
	for _, f := range run.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 2.0, fields["speedup"])
	assert.Equal(t, int64(90), fields["rows_kept"])
	assert.Equal(t, int64(10), fields["rows_dropped"])

	line := PointLine(points[1])
	assert.Contains(t, line, "aisjump_vessel,mmsi=219000001,run_id=run-7 anomalies=2i")
}

func TestPoints_InfiniteSpeedupOmitted(t *testing.T) {
	s := sampleSummary()
	s.Timing.Speedup = math.Inf(1)
	s.Speed = nil

	line := PointLine(Points(s, at)[0])
	assert.NotContains(t, line, "speedup")
	assert.NotContains(t, line, "speed_mean_kmh")
}

func TestPublish_BackupWhenUnreachable(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	p := NewPublisher(Config{URL: "http://127.0.0.1:1", Org: "o", Bucket: "b", BackupPath: backup, Timeout: time.Second}, zerolog.Nop())

	require.NoError(t, p.Connect(context.Background()))
	assert.False(t, p.IsValid())
	require.NoError(t, p.Publish(context.Background(), sampleSummary(), at))
	require.NoError(t, p.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(string(data), "\n"))
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.NotEmpty(t, l)
	}
	assert.True(t, strings.HasPrefix(lines[0], "aisjump_run,run_id=run-7 "))
	assert.True(t, strings.HasSuffix(lines[0], " 1709035200000000000"))
}

func TestConnect_UnreachableWithoutBackup(t *testing.T) {
	p := NewPublisher(Config{URL: "http://127.0.0.1:1", Timeout: time.Second}, zerolog.Nop())
	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestPublish_NotConnected(t *testing.T) {
	p := NewPublisher(Config{}, zerolog.Nop())
	assert.Error(t, p.Publish(context.Background(), sampleSummary(), at))
}

func TestPublish_Server(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		query  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(body))
			query = r.URL.RawQuery
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	p := NewPublisher(Config{URL: srv.URL, Token: "t", Org: "ais", Bucket: "runs"}, zerolog.Nop())
	require.NoError(t, p.Connect(context.Background()))
	assert.True(t, p.IsValid())
	require.NoError(t, p.Publish(context.Background(), sampleSummary(), at))
	require.NoError(t, p.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, bodies)
	all := strings.Join(bodies, "\n")
	assert.Contains(t, all, "aisjump_run,run_id=run-7")
	assert.Contains(t, all, "aisjump_vessel,mmsi=219000002,run_id=run-7")
	assert.Contains(t, query, "bucket=runs")
	assert.Contains(t, query, "org=ais")
}
