package geo

import (
	"fmt"

	"github.com/aisjump/detector/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Supported output spatial references.
const (
	SRID4326 = 4326 // WGS-84 lon/lat
	SRID3857 = 3857 // Web Mercator
)

// Segment builds the straight line from one position to the next,
// in the requested spatial reference.
func Segment(from, to core.Position, srid int) (geom.LineString, error) {
	x1, y1, err := project(from, srid)
	if err != nil {
		return geom.LineString{}, err
	}
	x2, y2, err := project(to, srid)
	if err != nil {
		return geom.LineString{}, err
	}
	seq := geom.NewSequence([]float64{x1, y1, x2, y2}, geom.DimXY)
	return geom.NewLineString(seq)
}

func project(p core.Position, srid int) (x, y float64, err error) {
	switch srid {
	case SRID4326:
		return p.Longitude, p.Latitude, nil
	case SRID3857:
		x, y = Coords3857From4326(p.Longitude, p.Latitude)
		return x, y, nil
	default:
		return 0, 0, fmt.Errorf("unsupported srid %d", srid)
	}
}

// Coords3857From4326 projects a longitude and latitude onto Web Mercator.
func Coords3857From4326(longitude, latitude float64) (x, y float64) {
	f := wgs84.EPSG().Transform(SRID4326, SRID3857)
	x, y, _ = f(longitude, latitude, 0)
	return x, y
}
