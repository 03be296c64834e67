// pkg/core/anomaly.go
package core

import (
	"cmp"
	"slices"
	"time"
)

// AnomalyEvent flags a consecutive pair of positions whose implied movement
// is physically implausible. Timestamp is the time of the later position.
type AnomalyEvent struct {
	VesselID   int64 // MMSI
	Timestamp  time.Time
	DistanceKm float64
	SpeedKmh   float64
	From       Position
	To         Position
}

// SortEvents orders events by vessel, then timestamp, then distance.
// Detection strategies give no cross-track ordering guarantee, so callers
// comparing or reporting results sort first.
func SortEvents(events []AnomalyEvent) {
	slices.SortStableFunc(events, CompareEvents)
}

// CompareEvents is the ordering used by SortEvents.
func CompareEvents(a, b AnomalyEvent) int {
	if c := cmp.Compare(a.VesselID, b.VesselID); c != 0 {
		return c
	}
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.DistanceKm, b.DistanceKm)
}
