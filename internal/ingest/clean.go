package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aisjump/detector/internal/geo"
	"github.com/aisjump/detector/pkg/core"
)

// cleanBatch validates each raw row and appends the survivors to dst.
// Invalid rows are counted, never reported as errors.
func (r *Reader) cleanBatch(batch []rawRow, dst []core.PositionRecord, stats *Stats) []core.PositionRecord {
	for _, row := range batch {
		rec, ok := r.cleanRow(row, stats)
		if ok {
			dst = append(dst, rec)
		}
	}
	return dst
}

func (r *Reader) cleanRow(row rawRow, stats *Stats) (core.PositionRecord, bool) {
	if row.short || isBlank(row.vesselID) || isBlank(row.timestamp) ||
		isBlank(row.latitude) || isBlank(row.longitude) {
		stats.DroppedMissing++
		return core.PositionRecord{}, false
	}

	id, ok := ParseVesselID(row.vesselID)
	if !ok {
		stats.DroppedInvalidVesselID++
		return core.PositionRecord{}, false
	}

	ts, ok := ParseTimestamp(row.timestamp, r.cfg.TimestampLayouts)
	if !ok {
		stats.DroppedInvalidTimestamp++
		return core.PositionRecord{}, false
	}

	pos, err := geo.ParseLatLon(row.latitude, row.longitude)
	if err != nil {
		stats.DroppedInvalidCoordinates++
		return core.PositionRecord{}, false
	}

	return core.PositionRecord{
		VesselID:  id,
		Timestamp: ts,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	}, true
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null")
}

// ParseVesselID parses an MMSI. Integral float notation ("219000001.0")
// is accepted because spreadsheet exports often write ids that way.
func ParseVesselID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, id > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseTimestamp tries each layout in order and returns the first match in UTC.
func ParseTimestamp(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
