// Package submission drives the asynchronous track creation job: it submits
// the assembled track and polls its progress until the backend reports a
// terminal state.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trackmapper/editor/internal/api"
	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/pkg/core"
)

// FinishedMessage is shown once the backend reports completion.
const FinishedMessage = "Track creation finished"

var (
	ErrJobRunning          = errors.New("a track submission is already running")
	ErrCancelled           = errors.New("track submission cancelled")
	ErrTooManyPollFailures = errors.New("progress polling failed repeatedly")
)

// State of a submission job.
type State int

const (
	NotStarted State = iota
	Submitting
	Polling
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling happens in this state.
func (s State) Terminal() bool {
	return s == Finished || s == Failed
}

func (s State) running() bool {
	return s == Submitting || s == Polling
}

// Backend is the subset of the API client the job needs.
type Backend interface {
	CreateTrack(ctx context.Context, payload core.SubmissionPayload) error
	Progress(ctx context.Context) (core.ProgressState, error)
}

// Recorder receives every observed progress state. It is called with the
// job lock held and must not block.
type Recorder interface {
	RecordProgress(track string, state core.ProgressState, polls int)
}

// Config holds job settings.
type Config struct {
	DefaultName     string
	PollInterval    time.Duration
	MaxPollFailures int
}

// Dependencies holds everything a Job talks to.
type Dependencies struct {
	Backend  Backend
	Notifier editor.Notifier
	Recorder Recorder
	Logger   *slog.Logger
	Config   Config
}

// Snapshot is a consistent view of a job.
type Snapshot struct {
	State    State
	Progress core.ProgressState
	Track    string
	Err      error
	Polls    int
}

// Job is the track submission state machine. It is safe for concurrent use:
// the poller runs on its own goroutine.
type Job struct {
	backend  Backend
	notifier editor.Notifier
	recorder Recorder
	log      *slog.Logger
	cfg      Config

	mu       sync.Mutex
	state    State
	progress core.ProgressState
	track    string
	err      error
	polls    int
	failures int
	run      int
	poller   *poller
	done     chan struct{}

	pollCounter metric.Int64Counter
}

// New creates a job in NotStarted.
func New(deps Dependencies) (*Job, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("submission: backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Config.DefaultName == "" {
		deps.Config.DefaultName = "TestTrack"
	}
	if deps.Config.PollInterval <= 0 {
		deps.Config.PollInterval = 2 * time.Second
	}
	if deps.Config.MaxPollFailures <= 0 {
		deps.Config.MaxPollFailures = 3
	}

	j := &Job{
		backend:  deps.Backend,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		log:      deps.Logger,
		cfg:      deps.Config,
		done:     closedChan(),
	}

	var err error
	j.pollCounter, err = meter().Int64Counter(
		"submission.polls",
		metric.WithDescription("Total progress polls issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating poll counter: %w", err)
	}
	return j, nil
}

// Submit sends the track built from src and form. On acceptance the job
// starts polling; on rejection it stays in NotStarted and may be submitted
// again. A second Submit while one is running returns ErrJobRunning.
func (j *Job) Submit(ctx context.Context, src Source, form Form) error {
	payload := BuildPayload(src, form, j.cfg.DefaultName)

	j.mu.Lock()
	if j.state.running() {
		j.mu.Unlock()
		return ErrJobRunning
	}
	j.run++
	run := j.run
	j.state = Submitting
	j.progress = core.ProgressState{}
	j.track = payload.Name
	j.err = nil
	j.polls = 0
	j.failures = 0
	j.done = make(chan struct{})
	j.mu.Unlock()

	j.log.Info("submitting track", "name", payload.Name, "paths", len(payload.Paths), "rasters", len(payload.Rasters))

	err := j.backend.CreateTrack(ctx, payload)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.run != run || j.state != Submitting {
		// Cancelled while the request was in flight. A newer run may
		// already own j.err.
		return ErrCancelled
	}

	if err != nil {
		j.state = NotStarted
		j.err = err
		close(j.done)

		var be *api.BackendError
		if errors.As(err, &be) {
			j.notify(editor.NoticeError, be.Message)
			j.log.Warn("track rejected", "code", api.ErrorCode(be.Message), "error", be.Message)
		} else {
			j.notify(editor.NoticeError, err.Error())
			j.log.Error("track submission failed", "error", err)
		}
		return editor.Reported(err)
	}

	j.state = Polling
	j.notify(editor.NoticeInfo, fmt.Sprintf("Track %q submitted", payload.Name))
	j.poller = startPoller(j.cfg.PollInterval, func(ctx context.Context) bool {
		return j.poll(ctx, run)
	})
	return nil
}

// poll fetches one progress state and reports whether polling is over.
func (j *Job) poll(ctx context.Context, run int) bool {
	state, err := j.backend.Progress(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	j.pollCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	j.mu.Lock()
	if j.run != run || j.state != Polling {
		j.mu.Unlock()
		return true
	}

	if err != nil {
		if ctx.Err() != nil {
			j.mu.Unlock()
			return true
		}
		j.failures++
		j.log.Warn("progress poll failed", "failures", j.failures, "error", err)
		j.notify(editor.NoticeWarning, fmt.Sprintf("Progress poll failed: %v", err))
		if j.failures >= j.cfg.MaxPollFailures {
			j.finish(Failed, fmt.Errorf("%w: %w", ErrTooManyPollFailures, err))
			j.notify(editor.NoticeError, j.err.Error())
			j.mu.Unlock()
			return true
		}
		j.mu.Unlock()
		return false
	}

	j.failures = 0
	j.polls++
	changed := j.progress.Progress != state.Progress
	j.progress = state
	if j.recorder != nil {
		j.recorder.RecordProgress(j.track, state, j.polls)
	}
	if changed && state.Progress != "" {
		j.notify(editor.NoticeInfo, state.Progress)
	}

	terminal := true
	switch {
	case state.Error != "":
		j.finish(Failed, &api.BackendError{Op: "progress", Message: state.Error})
		j.notify(editor.NoticeError, state.Error)
		j.log.Warn("track creation failed", "code", api.ErrorCode(state.Error), "error", state.Error)
	case state.Finished:
		j.finish(Finished, nil)
		j.notify(editor.NoticeInfo, FinishedMessage)
		j.log.Info("track creation finished", "polls", j.polls)
	default:
		terminal = false
	}
	j.mu.Unlock()
	return terminal
}

// finish moves to a terminal state. Callers hold j.mu.
func (j *Job) finish(state State, err error) {
	j.state = state
	j.err = err
	if j.poller != nil {
		j.poller.stop()
	}
	close(j.done)
}

// Cancel stops a running job, moving it to Failed with ErrCancelled. It is a
// no-op when nothing is running.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.state.running() {
		return
	}
	j.finish(Failed, ErrCancelled)
	j.notify(editor.NoticeWarning, ErrCancelled.Error())
	j.log.Info("track submission cancelled")
}

// Wait blocks until the current run is over or ctx is done. It returns the
// run's error, which is nil when the track finished.
func (j *Job) Wait(ctx context.Context) error {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Snapshot returns the current job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		State:    j.state,
		Progress: j.progress,
		Track:    j.track,
		Err:      j.err,
		Polls:    j.polls,
	}
}

func (j *Job) notify(level editor.NoticeLevel, msg string) {
	if j.notifier == nil {
		return
	}
	j.notifier.Notify(editor.Notice{Level: level, Message: msg})
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
