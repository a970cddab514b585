package editor

import (
	"errors"

	"github.com/trackmapper/editor/internal/storage/memory"
	"github.com/trackmapper/editor/pkg/core"
)

// flakySurface is a memory surface that can be told to reject polylines.
type flakySurface struct {
	*memory.Backend
	failPolylines bool
}

func (f *flakySurface) AddPolyline(kind core.LayerKind, points []core.Coordinate, style core.Style) (core.LayerID, error) {
	if f.failPolylines {
		return "", errors.New("surface unavailable")
	}
	return f.Backend.AddPolyline(kind, points, style)
}
