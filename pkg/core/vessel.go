// pkg/core/vessel.go
package core

import "time"

// Position is a WGS-84 latitude/longitude pair in decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// PositionRecord is a single cleaned AIS position report.
// VesselID is the MMSI of the reporting vessel.
type PositionRecord struct {
	VesselID  int64 // MMSI
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// Position returns the record's coordinates.
func (r PositionRecord) Position() Position {
	return Position{Latitude: r.Latitude, Longitude: r.Longitude}
}

// VesselTrack is the time-ordered sequence of records reported by one vessel.
// Records are ordered by Timestamp ascending; equal timestamps keep input order.
type VesselTrack struct {
	VesselID int64
	Records  []PositionRecord
}

// Len returns the number of records in the track.
func (t VesselTrack) Len() int {
	return len(t.Records)
}
