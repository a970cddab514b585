// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/trackmapper/editor/pkg/core"
)

// Backend keeps the drawn overlays in process memory
type Backend struct {
	layers map[core.LayerID]core.Layer
	order  []core.LayerID
	mu     sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		layers: make(map[core.LayerID]core.Layer),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close drops every layer
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.layers = make(map[core.LayerID]core.Layer)
	b.order = nil
	return nil
}

// AddMarker draws a point marker
func (b *Backend) AddMarker(pos core.Coordinate) (core.LayerID, error) {
	return b.add(core.Layer{Kind: core.LayerMarker, Points: []core.Coordinate{pos}}), nil
}

// AddPolyline draws a polyline
func (b *Backend) AddPolyline(kind core.LayerKind, points []core.Coordinate, style core.Style) (core.LayerID, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("polyline without points")
	}
	pts := make([]core.Coordinate, len(points))
	copy(pts, points)
	return b.add(core.Layer{Kind: kind, Style: style, Points: pts}), nil
}

func (b *Backend) add(l core.Layer) core.LayerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	l.ID = core.NewLayerID()
	b.layers[l.ID] = l
	b.order = append(b.order, l.ID)
	return l.ID
}

// RemoveLayer erases a layer
func (b *Backend) RemoveLayer(id core.LayerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.layers[id]; !ok {
		return fmt.Errorf("unknown layer: %s", id)
	}
	delete(b.layers, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// Layers returns the drawn layers in insertion order
func (b *Backend) Layers() ([]core.Layer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Layer, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.layers[id])
	}
	return out, nil
}

// Has reports whether a layer is currently drawn
func (b *Backend) Has(id core.LayerID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.layers[id]
	return ok
}

// Count returns the number of drawn layers of the given kind
func (b *Backend) Count(kind core.LayerKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, l := range b.layers {
		if l.Kind == kind {
			n++
		}
	}
	return n
}
