package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aisjump/detector/internal/geo"
	"github.com/aisjump/detector/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// WriteGeoJSON writes one LineString feature per event, from the earlier to
// the later position, projected to srid (4326 or 3857).
func WriteGeoJSON(w io.Writer, events []core.AnomalyEvent, srid int, layout string) error {
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	fc := make(geom.GeoJSONFeatureCollection, 0, len(events))
	for i, ev := range events {
		ls, err := geo.Segment(ev.From, ev.To, srid)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: ls.AsGeometry(),
			ID:       i,
			Properties: map[string]interface{}{
				"mmsi":       ev.VesselID,
				"timestamp":  ev.Timestamp.Format(layout),
				"distanceKm": ev.DistanceKm,
				"speedKmh":   ev.SpeedKmh,
				"srid":       srid,
			},
		})
	}

	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	return nil
}

// WriteGeoJSONFile writes the feature collection to path.
func WriteGeoJSONFile(path string, events []core.AnomalyEvent, srid int, layout string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create geojson: %w", err)
	}
	if err := WriteGeoJSON(f, events, srid, layout); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
