// Package track splits a time-ordered record stream into per-vessel tracks.
package track

import "github.com/aisjump/detector/pkg/core"

// Group partitions records by vessel. Tracks are returned in the order each
// vessel first appears, and every track keeps the input order of its records.
func Group(records []core.PositionRecord) []core.VesselTrack {
	index := make(map[int64]int)
	tracks := make([]core.VesselTrack, 0)

	for _, r := range records {
		i, ok := index[r.VesselID]
		if !ok {
			i = len(tracks)
			index[r.VesselID] = i
			tracks = append(tracks, core.VesselTrack{VesselID: r.VesselID})
		}
		tracks[i].Records = append(tracks[i].Records, r)
	}
	return tracks
}

// Count returns the total number of records across tracks.
func Count(tracks []core.VesselTrack) int {
	n := 0
	for _, t := range tracks {
		n += t.Len()
	}
	return n
}
