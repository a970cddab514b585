package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/trackmapper/editor/internal/dispatcher"
	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/submission"
	"github.com/trackmapper/editor/pkg/core"
)

// FormState holds the submission form fields entered so far.
type FormState struct {
	mu   sync.RWMutex
	form submission.Form
}

// Get returns a copy of the form.
func (f *FormState) Get() submission.Form {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.form
}

// Update applies fn to the form.
func (f *FormState) Update(fn func(*submission.Form)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.form)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Session *editor.Session
	Job     *submission.Job
	Logger  *slog.Logger
}

// Service maps console commands onto editor and submission operations.
type Service struct {
	deps Dependencies
	form *FormState
	log  *slog.Logger
}

// NewService creates a Service with an empty form.
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, form: &FormState{}, log: log}
}

// Form returns the submission form the service fills.
func (s *Service) Form() *FormState {
	return s.form
}

// Register adds every console command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register("path", s.togglePath, dispatcher.Logged())
	d.Register("start", s.startPath, dispatcher.Logged())
	d.Register("finish", s.finishPath, dispatcher.Logged())
	d.Register("abandon", s.abandonPath, dispatcher.Logged())
	d.Register("click", s.click, dispatcher.Logged(), dispatcher.MinArgs(2, "<lat> <lon>"))
	d.Register("closed", s.closed, dispatcher.Logged(), dispatcher.MinArgs(1, "on|off"))

	d.Register("raster", s.raster, dispatcher.Logged(), dispatcher.MinArgs(1, "<file path> [spatial ref]"))
	d.Register("srs", s.setSpatialRef, dispatcher.Logged())
	d.Register("name", s.setName, dispatcher.Logged())
	d.Register("output", s.setOutput, dispatcher.Logged())

	d.Register("delete-path", s.deletePath, dispatcher.Logged(), dispatcher.MinArgs(1, "<key>"))
	d.Register("delete-raster", s.deleteRaster, dispatcher.Logged(), dispatcher.MinArgs(1, "<key>"))
	d.Register("list", s.list)

	d.Register("submit", s.submit, dispatcher.Logged())
	d.Register("status", s.status)
	d.Register("wait", s.wait, dispatcher.Logged())
	d.Register("cancel", s.cancel, dispatcher.Logged())
}

func (s *Service) togglePath(ctx context.Context, _ dispatcher.Event) (any, error) {
	p, err := s.deps.Session.TogglePath(ctx)
	if err == nil && s.deps.Session.Mode() == editor.BuildingPath {
		return "building path", nil
	}
	return describeFinished(p), err
}

func (s *Service) startPath(_ context.Context, _ dispatcher.Event) (any, error) {
	if err := s.deps.Session.StartPath(); err != nil {
		return nil, err
	}
	return "building path", nil
}

func (s *Service) finishPath(ctx context.Context, _ dispatcher.Event) (any, error) {
	p, err := s.deps.Session.FinishPath(ctx)
	return describeFinished(p), err
}

func describeFinished(p *editor.CompletedPath) any {
	if p == nil {
		return "path discarded"
	}
	closed := ""
	if p.Closed {
		closed = ", closed"
	}
	return fmt.Sprintf("path %d: %d node(s)%s", p.Key, len(p.Positions), closed)
}

func (s *Service) abandonPath(_ context.Context, _ dispatcher.Event) (any, error) {
	if err := s.deps.Session.AbandonPath(); err != nil {
		return nil, err
	}
	return "path abandoned", nil
}

func (s *Service) click(ctx context.Context, e dispatcher.Event) (any, error) {
	pos, err := parseCoordinate(e.Args[0], e.Args[1])
	if err != nil {
		return nil, err
	}
	if s.deps.Session.Mode() != editor.BuildingPath {
		return "not building a path, click ignored", nil
	}
	if err := s.deps.Session.Click(ctx, pos); err != nil {
		return nil, err
	}
	if d := s.deps.Session.Draft(); d != nil {
		return fmt.Sprintf("%d node(s), %d segment(s)", len(d.Positions), len(d.Segments)), nil
	}
	return nil, nil
}

func parseCoordinate(lat, lon string) (core.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return core.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return core.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}
	return core.Coordinate{Lat: la, Lon: lo}, nil
}

func (s *Service) closed(_ context.Context, e dispatcher.Event) (any, error) {
	var closed bool
	switch strings.ToLower(e.Args[0]) {
	case "on", "true", "yes", "1":
		closed = true
	case "off", "false", "no", "0":
		closed = false
	default:
		return nil, fmt.Errorf("closed: expected on or off, got %q", e.Args[0])
	}
	s.deps.Session.SetClosed(closed)
	return nil, nil
}

func (s *Service) raster(ctx context.Context, e dispatcher.Event) (any, error) {
	srs := strings.Join(e.Args[1:], " ")
	if srs == "" {
		srs = s.form.Get().SpatialRef
	}
	r, err := s.deps.Session.RegisterRaster(ctx, e.Args[0], srs)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("raster %d: %s", r.Key, r.FilePath), nil
}

func (s *Service) setSpatialRef(_ context.Context, e dispatcher.Event) (any, error) {
	srs := strings.Join(e.Args, " ")
	s.form.Update(func(f *submission.Form) { f.SpatialRef = srs })
	return nil, nil
}

func (s *Service) setName(_ context.Context, e dispatcher.Event) (any, error) {
	name := strings.Join(e.Args, " ")
	s.form.Update(func(f *submission.Form) { f.Name = name })
	return nil, nil
}

func (s *Service) setOutput(_ context.Context, e dispatcher.Event) (any, error) {
	out := strings.Join(e.Args, " ")
	s.form.Update(func(f *submission.Form) { f.Output = out })
	return nil, nil
}

func (s *Service) deletePath(_ context.Context, e dispatcher.Event) (any, error) {
	key, err := parseKey(e.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Session.DeletePath(key)
}

func (s *Service) deleteRaster(_ context.Context, e dispatcher.Event) (any, error) {
	key, err := parseKey(e.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Session.DeleteRaster(key)
}

func parseKey(arg string) (int, error) {
	key, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q", arg)
	}
	return key, nil
}

func (s *Service) list(_ context.Context, _ dispatcher.Event) (any, error) {
	return renderCollections(s.deps.Session), nil
}

func (s *Service) submit(ctx context.Context, _ dispatcher.Event) (any, error) {
	if s.deps.Job == nil {
		return nil, errors.New("submission is not configured")
	}
	if err := s.deps.Job.Submit(ctx, s.deps.Session, s.form.Get()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Service) status(_ context.Context, _ dispatcher.Event) (any, error) {
	if s.deps.Job == nil {
		return nil, errors.New("submission is not configured")
	}
	return renderSnapshot(s.deps.Job.Snapshot()), nil
}

func (s *Service) wait(ctx context.Context, _ dispatcher.Event) (any, error) {
	if s.deps.Job == nil {
		return nil, errors.New("submission is not configured")
	}
	if err := s.deps.Job.Wait(ctx); err != nil {
		return nil, err
	}
	return s.deps.Job.Snapshot().State.String(), nil
}

func (s *Service) cancel(_ context.Context, _ dispatcher.Event) (any, error) {
	if s.deps.Job == nil {
		return nil, errors.New("submission is not configured")
	}
	s.deps.Job.Cancel()
	return nil, nil
}
