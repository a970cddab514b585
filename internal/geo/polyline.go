package geo

import (
	"fmt"

	"github.com/trackmapper/editor/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// LineString builds a geometry from an ordered list of coordinates, using
// longitude as X and latitude as Y.
func LineString(points []core.Coordinate) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.Lon, p.Lat)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}

// IsSimpleRing reports whether points form a closed ring that does not
// cross itself.
func IsSimpleRing(points []core.Coordinate) bool {
	ls, err := LineString(points)
	if err != nil {
		return false
	}
	return ls.IsClosed() && ls.IsSimple()
}

// WKT renders points as a LINESTRING for log output.
func WKT(points []core.Coordinate) string {
	ls, err := LineString(points)
	if err != nil {
		return "LINESTRING EMPTY"
	}
	return ls.AsText()
}
