// Package ingest reads AIS position reports from delimited text and cleans them
// into time-ordered core.PositionRecord values.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aisjump/detector/pkg/core"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// DefaultBatchSize bounds how many raw rows are held before cleaning.
const DefaultBatchSize = 100_000

// DefaultTimestampLayouts are tried in order when parsing timestamps.
var DefaultTimestampLayouts = []string{
	"02/01/2006 15:04:05", // Danish Maritime Authority export
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05", // NOAA BaseDateTime
}

// Config controls reading and cleaning.
type Config struct {
	BatchSize        int
	TimestampLayouts []string
	Comma            rune
}

// Stats counts what happened to every data row.
type Stats struct {
	RowsRead                  int `json:"rowsRead"`
	RowsKept                  int `json:"rowsKept"`
	Batches                   int `json:"batches"`
	DroppedMalformed          int `json:"droppedMalformed"`
	DroppedMissing            int `json:"droppedMissing"`
	DroppedInvalidVesselID    int `json:"droppedInvalidVesselId"`
	DroppedInvalidTimestamp   int `json:"droppedInvalidTimestamp"`
	DroppedInvalidCoordinates int `json:"droppedInvalidCoordinates"`
}

// Dropped returns the total number of rows filtered out.
func (s Stats) Dropped() int {
	return s.DroppedMalformed + s.DroppedMissing + s.DroppedInvalidVesselID +
		s.DroppedInvalidTimestamp + s.DroppedInvalidCoordinates
}

// Reader reads position reports in fixed-size batches.
type Reader struct {
	cfg Config
}

// NewReader creates a Reader, filling unset options with defaults.
func NewReader(cfg Config) *Reader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if len(cfg.TimestampLayouts) == 0 {
		cfg.TimestampLayouts = DefaultTimestampLayouts
	}
	if cfg.Comma == 0 {
		cfg.Comma = ','
	}
	return &Reader{cfg: cfg}
}

// ReadFile opens path and reads it with ReadAll.
func (r *Reader) ReadFile(ctx context.Context, path string) ([]core.PositionRecord, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	return r.ReadAll(ctx, f)
}

// ReadAll reads every row from src, drops rows that fail cleaning and
// returns the kept records sorted by timestamp (stable).
func (r *Reader) ReadAll(ctx context.Context, src io.Reader) ([]core.PositionRecord, Stats, error) {
	var stats Stats

	cr := csv.NewReader(src)
	cr.Comma = r.cfg.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, fmt.Errorf("empty input, no header: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, stats, err
	}

	records := make([]core.PositionRecord, 0)
	batch := make([]rawRow, 0, r.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		records = r.cleanBatch(batch, records, &stats)
		stats.Batches++
		batch = batch[:0]
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.RowsRead++
				stats.DroppedMalformed++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read input: %w", err)
		}
		stats.RowsRead++
		batch = append(batch, cols.extract(row))

		if len(batch) == r.cfg.BatchSize {
			flush()
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
	}
	flush()

	slices.SortStableFunc(records, func(a, b core.PositionRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	stats.RowsKept = len(records)

	return records, stats, nil
}

// rawRow holds only the four columns the cleaner needs, so a batch does
// not pin the full CSV row.
type rawRow struct {
	vesselID  string
	timestamp string
	latitude  string
	longitude string
	short     bool
}

type columns struct {
	vesselID, timestamp, latitude, longitude int
}

func (c columns) extract(row []string) rawRow {
	get := func(i int) (string, bool) {
		if i >= len(row) {
			return "", false
		}
		return row[i], true
	}
	var r rawRow
	var ok [4]bool
	r.vesselID, ok[0] = get(c.vesselID)
	r.timestamp, ok[1] = get(c.timestamp)
	r.latitude, ok[2] = get(c.latitude)
	r.longitude, ok[3] = get(c.longitude)
	r.short = !(ok[0] && ok[1] && ok[2] && ok[3])
	return r
}

var columnAliases = map[string][]string{
	"vesselID":  {"mmsi", "vessel_id", "vesselid"},
	"timestamp": {"timestamp", "basedatetime", "datetime", "time"},
	"latitude":  {"latitude", "lat"},
	"longitude": {"longitude", "lon", "long", "lng"},
}

// NormalizeHeader trims whitespace, a UTF-8 BOM and leading '#' characters
// and lower-cases the name, so " # Timestamp" matches "timestamp".
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "#")
	return strings.ToLower(strings.TrimSpace(name))
}

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := NormalizeHeader(h)
		if _, dup := index[n]; !dup {
			index[n] = i
		}
	}

	find := func(key string) (int, error) {
		for _, alias := range columnAliases[key] {
			if i, ok := index[alias]; ok {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %s", ErrMissingColumn, key)
	}

	var c columns
	var err error
	if c.vesselID, err = find("vesselID"); err != nil {
		return c, err
	}
	if c.timestamp, err = find("timestamp"); err != nil {
		return c, err
	}
	if c.latitude, err = find("latitude"); err != nil {
		return c, err
	}
	if c.longitude, err = find("longitude"); err != nil {
		return c, err
	}
	return c, nil
}
