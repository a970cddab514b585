package geo

import (
	"errors"

	"github.com/trackmapper/editor/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when coordinates fall outside the WGS84 range
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// NormalizeLongitude folds a longitude produced by a wrapped map view back
// into [-180, 180). The map is clamped to one extra world on each side, so a
// single shift is always enough.
func NormalizeLongitude(lon float64) float64 {
	if lon < -180 {
		lon += 360
	}
	if lon >= 180 {
		lon -= 360
	}
	return lon
}

// Normalize returns c with its longitude folded into [-180, 180).
func Normalize(c core.Coordinate) core.Coordinate {
	c.Lon = NormalizeLongitude(c.Lon)
	return c
}

// Validate checks that c is a usable WGS84 coordinate after normalization.
func Validate(c core.Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon >= 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Outline returns the closed ring drawn for a raster footprint. Corners 0/3
// and 1/2 are diagonal, so the ring visits 0,1,3,2 and returns to 0.
func Outline(fp core.Footprint) []core.Coordinate {
	return []core.Coordinate{fp[0], fp[1], fp[3], fp[2], fp[0]}
}

var toWebMercator = wgs84.EPSG().Transform(4326, 3857)

// ToWebMercator projects a WGS84 coordinate to EPSG:3857 meters.
func ToWebMercator(c core.Coordinate) (x, y float64) {
	x, y, _ = toWebMercator(c.Lon, c.Lat, 0)
	return x, y
}
