package report

import (
	"cmp"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/aisjump/detector/internal/ingest"
	"github.com/aisjump/detector/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TopN is how many vessels the summary ranks.
const TopN = 10

// SpeedStats describes the distribution of anomaly speeds in km/h.
type SpeedStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// VesselCount is a vessel and its number of anomalies.
type VesselCount struct {
	VesselID int64 `json:"mmsi"`
	Count    int   `json:"count"`
}

// Summary is the machine-readable overview of one run.
type Summary struct {
	RunID      string            `json:"runId"`
	Input      ingest.Stats      `json:"input"`
	Vessels    int               `json:"vessels"`
	Anomalies  int               `json:"anomalies"`
	Workers    int               `json:"workers"`
	Timing     core.TimingResult `json:"timing"`
	Speed      *SpeedStats       `json:"speed,omitempty"`
	TopVessels []VesselCount     `json:"topVessels"`
}

// BuildSummary aggregates a run's results.
func BuildSummary(runID string, stats ingest.Stats, vessels, workers int, events []core.AnomalyEvent, timing core.TimingResult) Summary {
	return Summary{
		RunID:      runID,
		Input:      stats,
		Vessels:    vessels,
		Anomalies:  len(events),
		Workers:    workers,
		Timing:     timing,
		Speed:      ComputeSpeedStats(events),
		TopVessels: TopVessels(events, TopN),
	}
}

// Speeds returns the anomaly speeds sorted ascending.
func Speeds(events []core.AnomalyEvent) []float64 {
	speeds := make([]float64, len(events))
	for i, ev := range events {
		speeds[i] = ev.SpeedKmh
	}
	slices.Sort(speeds)
	return speeds
}

// ComputeSpeedStats returns nil when there are no events.
func ComputeSpeedStats(events []core.AnomalyEvent) *SpeedStats {
	if len(events) == 0 {
		return nil
	}
	speeds := Speeds(events)
	return &SpeedStats{
		Mean:   stat.Mean(speeds, nil),
		Median: stat.Quantile(0.5, stat.Empirical, speeds, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, speeds, nil),
		Max:    floats.Max(speeds),
	}
}

// TopVessels ranks vessels by anomaly count, ties broken by ascending MMSI.
func TopVessels(events []core.AnomalyEvent, n int) []VesselCount {
	counts := make(map[int64]int)
	for _, ev := range events {
		counts[ev.VesselID]++
	}

	ranked := make([]VesselCount, 0, len(counts))
	for id, c := range counts {
		ranked = append(ranked, VesselCount{VesselID: id, Count: c})
	}
	slices.SortFunc(ranked, func(a, b VesselCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.VesselID, b.VesselID)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// WriteSummary writes s as JSON into dir and returns the file path. With
// compress set the file is gzipped and named summary.json.gz.
func WriteSummary(dir string, s Summary, compress bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := "summary.json"
	if compress {
		name += ".gz"
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := encodeSummary(f, s, compress); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close summary: %w", err)
	}
	return path, nil
}

func encodeSummary(w io.Writer, s Summary, compress bool) error {
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		w = gz
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		if gz != nil {
			return errors.Join(fmt.Errorf("failed to encode summary: %w", err), gz.Close())
		}
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return nil
}
