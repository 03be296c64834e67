// Package report writes detection results to disk: the anomaly CSV, a run
// summary and optional GeoJSON segments.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aisjump/detector/pkg/core"
)

// DefaultTimestampLayout is used when no layout is configured.
const DefaultTimestampLayout = "2006-01-02 15:04:05"

// Header is the first row of every anomaly report.
var Header = []string{"MMSI", "Timestamp", "Distance(km)", "Speed(km/h)"}

// WriteCSV writes the header and one row per event, in the given order.
func WriteCSV(w io.Writer, events []core.AnomalyEvent, layout string) error {
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, ev := range events {
		row := []string{
			strconv.FormatInt(ev.VesselID, 10),
			ev.Timestamp.Format(layout),
			formatFloat(ev.DistanceKm),
			formatFloat(ev.SpeedKmh),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path (and its directory) and writes the report to it.
func WriteCSVFile(path string, events []core.AnomalyEvent, layout string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteCSV(f, events, layout); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
