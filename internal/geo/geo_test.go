package geo

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/trackmapper/editor/pkg/core"
)

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"east wrap", 185, -175},
		{"west wrap", -185, 175},
		{"unchanged", 10, 10},
		{"upper bound wraps", 180, -180},
		{"lower bound kept", -180, -180},
		{"just below upper", 179.999, 179.999},
		{"full extra world east", 359, -1},
		{"full extra world west", -359, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLongitude(tt.in); got != tt.want {
				t.Errorf("NormalizeLongitude(%v) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_KeepsLatitude(t *testing.T) {
	got := Normalize(core.Coordinate{Lat: 48.5, Lon: 190})
	assert.Equal(t, core.Coordinate{Lat: 48.5, Lon: -170}, got)
}

func TestValidate(t *testing.T) {
	if err := Validate(core.Coordinate{Lat: 49, Lon: 10}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Validate(core.Coordinate{Lat: 91, Lon: 10}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for latitude 91, got %v", err)
	}
	if err := Validate(core.Coordinate{Lat: 0, Lon: 180}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for longitude 180, got %v", err)
	}
}

func TestOutline_Order(t *testing.T) {
	fp := core.Footprint{
		{Lat: 1, Lon: 0},
		{Lat: 1, Lon: 1},
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
	}

	want := []core.Coordinate{fp[0], fp[1], fp[3], fp[2], fp[0]}
	if diff := cmp.Diff(want, Outline(fp)); diff != "" {
		t.Errorf("Outline mismatch (-want +got):\n%s", diff)
	}
}

func TestOutline_IsSimpleRing(t *testing.T) {
	fp := core.Footprint{
		{Lat: 50, Lon: 10}, // top left
		{Lat: 50, Lon: 11}, // top right
		{Lat: 49, Lon: 10}, // bottom left
		{Lat: 49, Lon: 11}, // bottom right
	}

	assert.True(t, IsSimpleRing(Outline(fp)))

	// Naive corner order crosses itself.
	crossed := []core.Coordinate{fp[0], fp[1], fp[2], fp[3], fp[0]}
	assert.False(t, IsSimpleRing(crossed))
}

func TestToWebMercator(t *testing.T) {
	x, y := ToWebMercator(core.Coordinate{Lat: 0, Lon: 0})
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	x, _ = ToWebMercator(core.Coordinate{Lat: 0, Lon: 180})
	assert.InDelta(t, 20037508.34, x, 1)
}

func TestToWebMercator_Repeated(t *testing.T) {
	c := core.Coordinate{Lat: 49.5, Lon: 10.25}
	x1, y1 := ToWebMercator(c)
	for range 100 {
		x, y := ToWebMercator(c)
		assert.Equal(t, x1, x)
		assert.Equal(t, y1, y)
	}
	_, yNorth := ToWebMercator(core.Coordinate{Lat: 50, Lon: 10.25})
	assert.Greater(t, yNorth, y1)
}
