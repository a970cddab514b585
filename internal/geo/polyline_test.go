package geo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmapper/editor/pkg/core"
)

func TestLineString_Valid(t *testing.T) {
	ls, err := LineString([]core.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}})
	require.NoError(t, err)

	seq := ls.Coordinates()
	require.Equal(t, 2, seq.Length())
	assert.Equal(t, 2.0, seq.GetXY(0).X)
	assert.Equal(t, 1.0, seq.GetXY(0).Y)
	assert.Equal(t, 4.0, seq.GetXY(1).X)
	assert.Equal(t, 3.0, seq.GetXY(1).Y)
}

func TestLineString_TooFewPoints(t *testing.T) {
	_, err := LineString([]core.Coordinate{{Lat: 1, Lon: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 points")
}

func TestIsSimpleRing_OpenLine(t *testing.T) {
	assert.False(t, IsSimpleRing([]core.Coordinate{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}))
}

func TestWKT(t *testing.T) {
	wkt := WKT([]core.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}})
	assert.True(t, strings.HasPrefix(wkt, "LINESTRING"), wkt)
	assert.Equal(t, "LINESTRING EMPTY", WKT(nil))
}
