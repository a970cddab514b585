package editor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trackmapper/editor/internal/geo"
	"github.com/trackmapper/editor/pkg/core"
)

// StartPath switches to BuildingPath with a fresh draft.
func (s *Session) StartPath() error {
	if s.mode == BuildingPath {
		return ErrAlreadyBuilding
	}
	s.mode = BuildingPath
	s.draft = &PathDraft{}
	s.log.Debug("path started")
	return nil
}

// TogglePath starts a path when Idle and finishes the current one otherwise.
func (s *Session) TogglePath(ctx context.Context) (*CompletedPath, error) {
	if s.mode == Idle {
		return nil, s.StartPath()
	}
	return s.FinishPath(ctx)
}

// SetClosed sets whether the draft loops back to its first node. It has no
// effect while Idle.
func (s *Session) SetClosed(closed bool) {
	if s.mode != BuildingPath {
		return
	}
	s.draft.Closed = closed
}

// Click routes a map click into the draft. Clicks are ignored while Idle.
func (s *Session) Click(ctx context.Context, click core.Coordinate) error {
	if s.mode != BuildingPath {
		return nil
	}
	return s.AddSegment(ctx, click)
}

// AddSegment snaps click to the nearest node, renders a marker there and,
// from the second node on, stitches the shortest path from the previous
// node. When no route exists, or stitching fails, the node and its marker
// are rolled back and the draft is left as it was before the call.
func (s *Session) AddSegment(ctx context.Context, click core.Coordinate) error {
	if s.mode != BuildingPath {
		return ErrNotBuilding
	}

	pos := geo.Normalize(click)
	if err := geo.Validate(pos); err != nil {
		s.notify(NoticeError, fmt.Sprintf("Invalid position %s", click))
		return Reported(err)
	}

	node, err := s.routing.NearestNode(ctx, pos)
	if err != nil {
		s.notify(NoticeError, err.Error())
		return Reported(err)
	}
	if !node.Valid() {
		s.notify(NoticeWarning, "No nearby node found in clicked area")
		return Reported(ErrNoNearbyNode)
	}

	location, err := s.routing.NodeLocation(ctx, node)
	if err != nil {
		s.notify(NoticeError, err.Error())
		return Reported(err)
	}

	layer, err := s.surface.AddMarker(location)
	if err != nil {
		s.notify(NoticeError, err.Error())
		return Reported(fmt.Errorf("render marker: %w", err))
	}

	d := s.draft
	d.Positions = append(d.Positions, node)
	d.Markers = append(d.Markers, Marker{Node: node, Position: location, Layer: layer})
	s.log.Debug("node added", "node", node, "position", location.String(), "count", len(d.Positions))

	if len(d.Positions) < 2 {
		return nil
	}

	from := d.Positions[len(d.Positions)-2]
	seg, err := s.stitch(ctx, from, node)
	if err != nil {
		return s.rollback(err)
	}
	d.Segments = append(d.Segments, seg)
	return nil
}

// stitch requests and renders the route between two nodes. It returns
// ErrNoPath when the backend has no route.
func (s *Session) stitch(ctx context.Context, from, to core.NodeID) (Segment, error) {
	route, err := s.routing.ShortestPath(ctx, from, to)
	if err != nil {
		return Segment{}, err
	}
	if !route.Found() {
		return Segment{}, ErrNoPath
	}

	layer, err := s.surface.AddPolyline(core.LayerSegment, route.Points, core.SegmentStyle)
	if err != nil {
		return Segment{}, fmt.Errorf("render segment: %w", err)
	}

	s.segmentsAdded.Add(context.Background(), 1)
	s.log.Debug("segment added", "from", from, "to", to, "distance", route.Distance, "points", len(route.Points))

	return Segment{From: from, To: to, Points: route.Points, Layer: layer}, nil
}

// rollback drops the last node and marker of the draft after cause made the
// preceding segment fail.
func (s *Session) rollback(cause error) error {
	d := s.draft
	last := d.Markers[len(d.Markers)-1]
	d.Positions = d.Positions[:len(d.Positions)-1]
	d.Markers = d.Markers[:len(d.Markers)-1]

	reason := "no_path"
	if errors.Is(cause, ErrNoPath) {
		s.notify(NoticeWarning, "No path found to last position")
	} else {
		reason = "error"
		s.notify(NoticeError, cause.Error())
	}
	s.segmentsRolledBack.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
	s.log.Info("segment rolled back", "node", last.Node, "reason", reason)

	if err := s.surface.RemoveLayer(last.Layer); err != nil {
		s.log.Error("failed to remove rolled back marker", "layer", last.Layer, "error", err)
		return errors.Join(Reported(cause), err)
	}
	return Reported(cause)
}

// FinishPath leaves BuildingPath, removes every marker and, when at least two
// nodes were placed, stores the draft as a completed path. A closed draft
// ends with its first node again and gets a final segment back to it. If
// that closing segment fails the path is still stored with the loop's node
// sequence but without the segment, Closed is false, and the failure is
// returned along with the path.
func (s *Session) FinishPath(ctx context.Context) (*CompletedPath, error) {
	if s.mode != BuildingPath {
		return nil, ErrNotBuilding
	}
	d := s.draft
	s.mode = Idle
	s.draft = nil

	removeErr := s.removeMarkers(d.Markers)
	d.Markers = nil

	if len(d.Positions) < 2 {
		s.log.Debug("path discarded", "nodes", len(d.Positions))
		return nil, removeErr
	}

	var closeErr error
	if d.Closed {
		first, last := d.Positions[0], d.Positions[len(d.Positions)-1]
		d.Positions = append(d.Positions, first)
		seg, err := s.stitch(ctx, last, first)
		switch {
		case err == nil:
			d.Segments = append(d.Segments, seg)
		case errors.Is(err, ErrNoPath):
			s.notify(NoticeWarning, "No path found to last position")
			d.Closed = false
			closeErr = Reported(err)
		default:
			s.notify(NoticeError, err.Error())
			d.Closed = false
			closeErr = Reported(err)
		}
	}

	key := s.nextPathKey
	s.nextPathKey++
	cp := &CompletedPath{
		Key:       key,
		Positions: d.Positions,
		Segments:  d.Segments,
		Closed:    d.Closed,
	}
	s.paths[key] = cp
	s.notify(NoticeInfo, fmt.Sprintf("Path %d added", key))
	s.log.Info("path completed", "key", key, "nodes", len(cp.Positions), "closed", cp.Closed)

	out := *cp
	return &out, errors.Join(closeErr, removeErr)
}

// AbandonPath discards the draft without creating a path. Every marker and
// segment it rendered is removed.
func (s *Session) AbandonPath() error {
	if s.mode != BuildingPath {
		return ErrNotBuilding
	}
	d := s.draft
	s.mode = Idle
	s.draft = nil

	err := s.removeMarkers(d.Markers)
	err = errors.Join(err, s.removeSegments(d.Segments))
	s.log.Debug("path abandoned", "nodes", len(d.Positions))
	return err
}

// DeletePath removes a completed path and exactly its own segments.
func (s *Session) DeletePath(key int) error {
	p, ok := s.paths[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPath, key)
	}
	delete(s.paths, key)
	s.log.Info("path deleted", "key", key)
	return s.removeSegments(p.Segments)
}

func (s *Session) removeMarkers(markers []Marker) error {
	var errs []error
	for _, m := range markers {
		if err := s.surface.RemoveLayer(m.Layer); err != nil {
			errs = append(errs, fmt.Errorf("remove marker %s: %w", m.Layer, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) removeSegments(segments []Segment) error {
	var errs []error
	for _, seg := range segments {
		if err := s.surface.RemoveLayer(seg.Layer); err != nil {
			errs = append(errs, fmt.Errorf("remove segment %s: %w", seg.Layer, err))
		}
	}
	return errors.Join(errs...)
}
