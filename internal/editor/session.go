package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/metric"

	"github.com/trackmapper/editor/internal/storage"
	"github.com/trackmapper/editor/pkg/core"
)

var (
	ErrAlreadyBuilding = errors.New("a path is already being built")
	ErrNotBuilding     = errors.New("no path is being built")
	ErrNoNearbyNode    = errors.New("no nearby node found in clicked area")
	ErrNoPath          = errors.New("no path found to last position")
	ErrUnknownPath     = errors.New("unknown path")
	ErrUnknownRaster   = errors.New("unknown raster")
	ErrEmptyFilePath   = errors.New("raster file path is empty")
)

// Routing is the subset of the backend the editor queries.
type Routing interface {
	NearestNode(ctx context.Context, pos core.Coordinate) (core.NodeID, error)
	NodeLocation(ctx context.Context, id core.NodeID) (core.Coordinate, error)
	ShortestPath(ctx context.Context, from, to core.NodeID) (core.Route, error)
	RasterFootprint(ctx context.Context, filePath, spatialRef string) (core.Footprint, error)
}

// Dependencies holds everything a Session talks to.
type Dependencies struct {
	Routing  Routing
	Surface  storage.Backend
	Notifier Notifier
	Logger   *slog.Logger
}

// Mode is the click mode of a session.
type Mode int

const (
	Idle Mode = iota
	BuildingPath
)

func (m Mode) String() string {
	if m == BuildingPath {
		return "building-path"
	}
	return "idle"
}

// Marker is a rendered node of the draft.
type Marker struct {
	Node     core.NodeID
	Position core.Coordinate
	Layer    core.LayerID
}

// Segment is a rendered shortest-path route between two consecutive nodes.
type Segment struct {
	From   core.NodeID
	To     core.NodeID
	Points []core.Coordinate
	Layer  core.LayerID
}

// PathDraft is the path under construction. Markers and Positions always
// have the same length.
type PathDraft struct {
	Positions []core.NodeID
	Markers   []Marker
	Segments  []Segment
	Closed    bool
}

// CompletedPath is a finalized path. Markers are not kept.
type CompletedPath struct {
	Key       int
	Positions []core.NodeID
	Segments  []Segment
	// Closed is set when the segment back to the first node was rendered.
	Closed bool
}

// RasterEntry is a registered raster and its drawn footprint.
type RasterEntry struct {
	Key        int
	FilePath   string
	SpatialRef string
	Footprint  core.Footprint
	Outline    []core.Coordinate
	Layer      core.LayerID
}

// Session owns the editing state of one user. It is not safe for concurrent
// use; callers serialize operations.
type Session struct {
	routing  Routing
	surface  storage.Backend
	notifier Notifier
	log      *slog.Logger

	mode  Mode
	draft *PathDraft

	paths         map[int]*CompletedPath
	rasters       map[int]*RasterEntry
	nextPathKey   int
	nextRasterKey int

	segmentsAdded      metric.Int64Counter
	segmentsRolledBack metric.Int64Counter
	rastersRegistered  metric.Int64Counter
}

// New creates a Session. Uses the global OTel meter for metrics.
func New(deps Dependencies) (*Session, error) {
	if deps.Routing == nil {
		return nil, fmt.Errorf("editor: routing client is required")
	}
	if deps.Surface == nil {
		return nil, fmt.Errorf("editor: rendering surface is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = discardNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		routing:  deps.Routing,
		surface:  deps.Surface,
		notifier: deps.Notifier,
		log:      deps.Logger,
		paths:    make(map[int]*CompletedPath),
		rasters:  make(map[int]*RasterEntry),
	}

	m := meter()
	var err error

	s.segmentsAdded, err = m.Int64Counter(
		"editor.segments.added",
		metric.WithDescription("Total path segments rendered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segments counter: %w", err)
	}

	s.segmentsRolledBack, err = m.Int64Counter(
		"editor.segments.rolledback",
		metric.WithDescription("Total segment requests rolled back"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rollback counter: %w", err)
	}

	s.rastersRegistered, err = m.Int64Counter(
		"editor.rasters.registered",
		metric.WithDescription("Total rasters registered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating raster counter: %w", err)
	}

	return s, nil
}

// Mode returns the current click mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Draft returns a copy of the path under construction, or nil when Idle.
func (s *Session) Draft() *PathDraft {
	if s.draft == nil {
		return nil
	}
	return &PathDraft{
		Positions: append([]core.NodeID(nil), s.draft.Positions...),
		Markers:   append([]Marker(nil), s.draft.Markers...),
		Segments:  append([]Segment(nil), s.draft.Segments...),
		Closed:    s.draft.Closed,
	}
}

// Paths returns the completed paths ordered by key.
func (s *Session) Paths() []CompletedPath {
	keys := sortedKeys(s.paths)
	out := make([]CompletedPath, 0, len(keys))
	for _, k := range keys {
		p := s.paths[k]
		out = append(out, CompletedPath{
			Key:       p.Key,
			Positions: append([]core.NodeID(nil), p.Positions...),
			Segments:  append([]Segment(nil), p.Segments...),
			Closed:    p.Closed,
		})
	}
	return out
}

// Rasters returns the registered rasters ordered by key.
func (s *Session) Rasters() []RasterEntry {
	keys := sortedKeys(s.rasters)
	out := make([]RasterEntry, 0, len(keys))
	for _, k := range keys {
		r := *s.rasters[k]
		r.Outline = append([]core.Coordinate(nil), r.Outline...)
		out = append(out, r)
	}
	return out
}

// PathNodeSequences returns the node sequence of every completed path,
// ordered by key.
func (s *Session) PathNodeSequences() [][]core.NodeID {
	keys := sortedKeys(s.paths)
	out := make([][]core.NodeID, 0, len(keys))
	for _, k := range keys {
		out = append(out, append([]core.NodeID(nil), s.paths[k].Positions...))
	}
	return out
}

// RasterFilePaths returns the file path of every registered raster,
// ordered by key.
func (s *Session) RasterFilePaths() []string {
	keys := sortedKeys(s.rasters)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.rasters[k].FilePath)
	}
	return out
}

func (s *Session) notify(level NoticeLevel, msg string) {
	s.notifier.Notify(Notice{Level: level, Message: msg})
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
