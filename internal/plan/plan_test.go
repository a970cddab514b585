package plan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmapper/editor/pkg/core"
)

const samplePlan = `
name: Ridge Loop
output: /out/ridge.tif
spatialRef: EPSG:32632
rasters:
  - path: C:\data\a.tif
  - path: /data/b.tif
    spatialRef: EPSG:4326
paths:
  - closed: true
    clicks:
      - [0, 0]
      - [0, 1]
      - [1, 1]
  - clicks: [[1, 0], [0, 0]]
submit: true
`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(samplePlan))
	require.NoError(t, err)

	assert.Equal(t, "Ridge Loop", p.Name)
	assert.Equal(t, "/out/ridge.tif", p.Output)
	assert.True(t, p.Submit)
	require.Len(t, p.Rasters, 2)
	assert.Equal(t, `C:\data\a.tif`, p.Rasters[0].Path)
	assert.Equal(t, "EPSG:4326", p.Rasters[1].SpatialRef)

	require.Len(t, p.Paths, 2)
	assert.True(t, p.Paths[0].Closed)
	assert.Equal(t, []core.Coordinate{{Lat: 1, Lon: 0}, {Lat: 0, Lon: 0}}, p.Paths[1].Coordinates())

	form := p.Form()
	assert.Equal(t, "EPSG:32632", form.SpatialRef)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty document"},
		{"nothing to do", "name: x\n", "nothing to do"},
		{"raster without path", "rasters:\n  - spatialRef: x\n", "raster 0 has no path"},
		{"short click", "paths:\n  - clicks: [[1]]\n", "want [lat, lon]"},
		{"latitude range", "paths:\n  - clicks: [[91, 0]]\n", "latitude 91 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPlan))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("submit: true\ncolour: red\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ridge Loop", p.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
