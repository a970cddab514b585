package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/submission"
	"github.com/trackmapper/editor/pkg/core"
)

// DefaultConcurrency bounds concurrent footprint requests.
const DefaultConcurrency = 4

// Dependencies holds what Apply drives.
type Dependencies struct {
	Session *editor.Session
	// Job is required only for plans that submit.
	Job         *submission.Job
	Concurrency int
	Logger      *slog.Logger
}

// Result summarizes an applied plan.
type Result struct {
	RasterKeys []int
	PathKeys   []int
	// SkippedClicks counts clicks that matched no node or could not be
	// routed to the previous node.
	SkippedClicks int
	// DiscardedPaths counts paths that ended with fewer than two nodes.
	DiscardedPaths int
	// UnclosedPaths counts closed paths whose closing segment failed.
	UnclosedPaths int
	Submitted     bool
	Job           submission.Snapshot
}

// Apply runs p against the session. Raster footprints are fetched
// concurrently and registered in plan order, so keys follow the file. Path
// clicks are replayed one at a time. When the plan submits, Apply waits for
// the job to reach a terminal state.
func Apply(ctx context.Context, p *Plan, deps Dependencies) (*Result, error) {
	if deps.Session == nil {
		return nil, errors.New("plan: session is required")
	}
	if p.Submit && deps.Job == nil {
		return nil, errors.New("plan: submission job is required to submit")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}

	res := &Result{}
	if err := applyRasters(ctx, p, deps, res); err != nil {
		return res, err
	}
	if err := applyPaths(ctx, p, deps, res); err != nil {
		return res, err
	}
	if !p.Submit {
		return res, nil
	}

	if err := deps.Job.Submit(ctx, deps.Session, p.Form()); err != nil {
		return res, fmt.Errorf("submit: %w", err)
	}
	res.Submitted = true

	err := deps.Job.Wait(ctx)
	res.Job = deps.Job.Snapshot()
	if err != nil {
		return res, fmt.Errorf("track creation: %w", err)
	}
	return res, nil
}

func applyRasters(ctx context.Context, p *Plan, deps Dependencies, res *Result) error {
	if len(p.Rasters) == 0 {
		return nil
	}

	srs := func(r Raster) string {
		if r.SpatialRef != "" {
			return r.SpatialRef
		}
		return p.SpatialRef
	}

	// FetchFootprint leaves session state alone, so fetches may overlap.
	footprints := make([]core.Footprint, len(p.Rasters))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(deps.Concurrency)
	for i, r := range p.Rasters {
		g.Go(func() error {
			fp, err := deps.Session.FetchFootprint(gCtx, r.Path, srs(r))
			if err != nil {
				return fmt.Errorf("raster %q: %w", r.Path, err)
			}
			footprints[i] = fp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, r := range p.Rasters {
		entry, err := deps.Session.AddRaster(r.Path, srs(r), footprints[i])
		if err != nil {
			return fmt.Errorf("raster %q: %w", r.Path, err)
		}
		res.RasterKeys = append(res.RasterKeys, entry.Key)
	}
	deps.Logger.Info("plan rasters registered", "count", len(res.RasterKeys))
	return nil
}

func applyPaths(ctx context.Context, p *Plan, deps Dependencies, res *Result) error {
	s := deps.Session
	for i, path := range p.Paths {
		if err := s.StartPath(); err != nil {
			return fmt.Errorf("path %d: %w", i, err)
		}
		s.SetClosed(path.Closed)

		for j, c := range path.Coordinates() {
			err := s.Click(ctx, c)
			switch {
			case err == nil:
			case errors.Is(err, editor.ErrNoNearbyNode), errors.Is(err, editor.ErrNoPath):
				res.SkippedClicks++
				deps.Logger.Warn("plan click skipped", "path", i, "click", j, "error", err)
			default:
				if abandonErr := s.AbandonPath(); abandonErr != nil {
					err = errors.Join(err, abandonErr)
				}
				return fmt.Errorf("path %d click %d: %w", i, j, err)
			}
		}

		cp, err := s.FinishPath(ctx)
		switch {
		case cp == nil && err == nil:
			res.DiscardedPaths++
			deps.Logger.Warn("plan path discarded", "path", i)
		case cp == nil:
			return fmt.Errorf("path %d: %w", i, err)
		default:
			if path.Closed && !cp.Closed {
				res.UnclosedPaths++
			}
			if err != nil {
				deps.Logger.Warn("plan path stored with errors", "path", i, "key", cp.Key, "error", err)
			}
			res.PathKeys = append(res.PathKeys, cp.Key)
		}
	}
	return nil
}
