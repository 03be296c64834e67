// pkg/core/timing.go
package core

import (
	"encoding/json"
	"math"
)

// TimingResult compares the wall-clock cost of the two detection strategies.
// Speedup is SequentialSeconds/ParallelSeconds, or +Inf when the parallel
// pass took no measurable time.
type TimingResult struct {
	SequentialSeconds float64
	ParallelSeconds   float64
	Speedup           float64
}

// IsInfinite reports whether the speedup is unbounded.
func (t TimingResult) IsInfinite() bool {
	return math.IsInf(t.Speedup, 1)
}

// MarshalJSON encodes an infinite speedup as the string "+Inf",
// which encoding/json cannot represent as a number.
func (t TimingResult) MarshalJSON() ([]byte, error) {
	var speedup any = t.Speedup
	if t.IsInfinite() {
		speedup = "+Inf"
	}
	return json.Marshal(struct {
		SequentialSeconds float64 `json:"sequentialSeconds"`
		ParallelSeconds   float64 `json:"parallelSeconds"`
		Speedup           any     `json:"speedup"`
	}{t.SequentialSeconds, t.ParallelSeconds, speedup})
}
