// Package detector flags consecutive position pairs within a vessel track
// whose implied movement is physically implausible.
package detector

import (
	"fmt"

	"github.com/aisjump/detector/internal/geo"
	"github.com/aisjump/detector/pkg/core"
)

const (
	DefaultDistanceThresholdKm  = 100.0
	DefaultVelocityThresholdKmh = 1000.0
	DefaultTimeDiffUnit         = 1.0
)

// Config holds the detection thresholds.
//
// TimeDiffUnit is the fixed time assumed between any two consecutive
// reports. Actual timestamp deltas are not used, so SpeedKmh equals
// DistanceKm when the unit is 1.
type Config struct {
	DistanceThresholdKm  float64
	VelocityThresholdKmh float64
	TimeDiffUnit         float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DistanceThresholdKm:  DefaultDistanceThresholdKm,
		VelocityThresholdKmh: DefaultVelocityThresholdKmh,
		TimeDiffUnit:         DefaultTimeDiffUnit,
	}
}

// DetectionError reports a pair that could not be evaluated.
type DetectionError struct {
	VesselID int64
	Index    int // index of the later record of the pair
	Err      error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("vessel %d record %d: %v", e.VesselID, e.Index, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Detector is stateless and safe for concurrent use on disjoint tracks.
type Detector struct {
	cfg Config
}

// New creates a Detector. A non-positive TimeDiffUnit is replaced by the default.
func New(cfg Config) *Detector {
	if cfg.TimeDiffUnit <= 0 {
		cfg.TimeDiffUnit = DefaultTimeDiffUnit
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect evaluates every consecutive pair of t and returns one event per
// pair whose distance or implied velocity is strictly above its threshold.
// Events are in track order. The track is not modified.
func (d *Detector) Detect(t core.VesselTrack) ([]core.AnomalyEvent, error) {
	if t.Len() < 2 {
		return nil, nil
	}

	var events []core.AnomalyEvent
	for i := 1; i < len(t.Records); i++ {
		prev, cur := t.Records[i-1], t.Records[i]

		distance, err := geo.DistanceKm(prev.Position(), cur.Position())
		if err != nil {
			return nil, &DetectionError{VesselID: t.VesselID, Index: i, Err: err}
		}
		velocity := distance / d.cfg.TimeDiffUnit

		if distance > d.cfg.DistanceThresholdKm || velocity > d.cfg.VelocityThresholdKmh {
			events = append(events, core.AnomalyEvent{
				VesselID:   t.VesselID,
				Timestamp:  cur.Timestamp,
				DistanceKm: distance,
				SpeedKmh:   velocity,
				From:       prev.Position(),
				To:         cur.Position(),
			})
		}
	}
	return events, nil
}
