// internal/storage/storage.go
package storage

import "github.com/trackmapper/editor/pkg/core"

// Backend is the rendering surface the editor draws its overlays on. The
// editor only ever removes layers it added itself.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Overlays (assign and return a fresh layer id)
	AddMarker(pos core.Coordinate) (core.LayerID, error)
	AddPolyline(kind core.LayerKind, points []core.Coordinate, style core.Style) (core.LayerID, error)
	RemoveLayer(id core.LayerID) error
}

// Lister is an optional interface for backends that can report the layers
// currently drawn, in the order they were added.
type Lister interface {
	Layers() ([]core.Layer, error)
}
