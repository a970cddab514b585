// pkg/core/types.go
package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeID references a node in the backend routing graph. It carries no
// geometry; coordinates are resolved through the backend.
type NodeID int64

// NoNode is the sentinel the backend returns when no node lies within its
// matching radius.
const NoNode NodeID = -1

// Valid reports whether the id is a real node reference. Any negative id
// is read as a miss.
func (n NodeID) Valid() bool {
	return n >= 0
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// Footprint is the georeferenced extent of a raster as returned by the
// backend. Corners 0 and 3 are diagonal, as are 1 and 2.
type Footprint [4]Coordinate

// Route is a shortest path between two nodes.
type Route struct {
	Distance float64
	Points   []Coordinate
}

// Found reports whether the backend resolved a path.
func (r Route) Found() bool {
	return r.Distance != -1 && len(r.Points) > 0
}

// ProgressState is one poll of the backend's track creation progress.
type ProgressState struct {
	Progress string `json:"progress"`
	Finished bool   `json:"finished"`
	Error    string `json:"error,omitempty"`
}

// SubmissionPayload is the track description sent to the backend.
type SubmissionPayload struct {
	Name    string     `json:"name"`
	Rasters []string   `json:"rasters"`
	Paths   [][]NodeID `json:"paths"`
	Output  string     `json:"output"`
	WKT     string     `json:"wkt"`
}

// LayerID identifies an overlay drawn on a rendering surface.
type LayerID string

// NewLayerID returns a fresh random layer id.
func NewLayerID() LayerID {
	return LayerID(uuid.NewString())
}

// LayerKind tells a surface what an overlay represents.
type LayerKind string

const (
	LayerMarker    LayerKind = "marker"
	LayerSegment   LayerKind = "segment"
	LayerFootprint LayerKind = "footprint"
)

// Style holds the drawing attributes of a polyline.
type Style struct {
	Color string `json:"color"`
}

var (
	SegmentStyle   = Style{Color: "red"}
	FootprintStyle = Style{Color: "green"}
)

// Layer is a rendered overlay as tracked by a surface.
type Layer struct {
	ID     LayerID      `json:"id"`
	Kind   LayerKind    `json:"kind"`
	Style  Style        `json:"style"`
	Points []Coordinate `json:"points"`
}
