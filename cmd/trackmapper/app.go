package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trackmapper/editor/internal/api"
	"github.com/trackmapper/editor/internal/config"
	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/influx"
	"github.com/trackmapper/editor/internal/logging"
	"github.com/trackmapper/editor/internal/storage"
	"github.com/trackmapper/editor/internal/submission"
)

const appName = "trackmapper"

// app holds everything a command needs, built from config.
type app struct {
	startTime time.Time
	sessionID string

	logs    *logging.SlogManager
	log     *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File

	client  *api.Client
	notices *editor.NoticeQueue
	surface storage.Backend
	session *editor.Session
	job     *submission.Job
	influx  *influx.Manager
}

// loadConfig reads the config file. A missing file falls back to defaults.
func loadConfig(out io.Writer) {
	if err := config.Load(configDir); err != nil {
		fmt.Fprintf(out, "warning: %v, using defaults\n", err)
	}
}

// newLoggedApp loads config and sets up logging only.
func newLoggedApp(toFile bool) (*app, error) {
	a := &app{
		startTime: time.Now(),
		sessionID: uuid.NewString(),
		logs:      logging.NewSlogManager(),
	}

	level := config.GetString("logLevel")

	var file io.Writer
	if toFile {
		f, err := logging.OpenLogFile(config.GetString("logsDir"), appName, a.startTime)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		a.logs.AddCloser(f)
		file = f
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		h, w, err := logging.NewGraylogHandler(config.GetString("graylog.address"), level)
		if err != nil {
			return nil, err
		}
		a.logs.AddCloser(w)
		extra = append(extra, h)
	}

	a.logs.Setup(file, level, func() []slog.Attr {
		return []slog.Attr{slog.String("session", a.sessionID)}
	}, extra...)
	a.log = a.logs.Logger()

	zout := io.Writer(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if file != nil {
		zout = file
	}
	a.zlog = zerolog.New(zout).With().Timestamp().Str("session", a.sessionID).Logger().
		Level(zerologLevel(level))

	if a.logFile != nil {
		a.log.Info("Logging to file", "path", a.logFile.Name())
	}
	return a, nil
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// newApp builds the full editing stack: API client, rendering surface,
// session and submission job. InfluxDB telemetry is attached when enabled.
func newApp(ctx context.Context, toFile bool) (*app, error) {
	a, err := newLoggedApp(toFile)
	if err != nil {
		return nil, err
	}

	apiCfg := config.GetAPIConfig()
	a.client = api.New(apiCfg.ServerURL, apiCfg.Timeout)
	a.notices = editor.NewNoticeQueue()

	surface, id, err := createStorageBackend(config.GetStorageConfig(), apiCfg.ServerURL, a.sessionID, a.zlog, a.log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create storage: %w", err)
	}
	if id != "" {
		a.sessionID = id
	}
	if err := surface.Init(); err != nil {
		a.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.surface = surface

	a.session, err = editor.New(editor.Dependencies{
		Routing:  a.client,
		Surface:  surface,
		Notifier: a.notices,
		Logger:   a.log.With("component", "editor"),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	var recorder submission.Recorder
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(config.GetString("logsDir"), fmt.Sprintf("%s_influx_%s.gz", appName, a.startTime.Format("20060102_150405")))
		m := influx.NewManager(influxCfg, a.zlog, backup)
		if err := m.Connect(ctx); err != nil {
			a.log.Warn("InfluxDB unavailable, progress telemetry disabled", "error", err)
		} else {
			a.influx = m
			recorder = m
		}
	}

	trackCfg := config.GetTrackConfig()
	a.job, err = submission.New(submission.Dependencies{
		Backend:  a.client,
		Notifier: a.notices,
		Recorder: recorder,
		Logger:   a.log.With("component", "submission"),
		Config: submission.Config{
			DefaultName:     trackCfg.DefaultName,
			PollInterval:    trackCfg.PollInterval,
			MaxPollFailures: trackCfg.MaxPollFailures,
		},
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.log.Info("Editor ready", "server", apiCfg.ServerURL, "storage", config.GetStorageConfig().Type)
	return a, nil
}

// close stops the job and releases the surface, telemetry and log sinks.
func (a *app) close() error {
	var errs []error
	if a.job != nil {
		a.job.Cancel()
	}
	if a.surface != nil {
		if err := a.surface.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close influx: %w", err))
		}
	}
	if a.log != nil {
		a.log.Info("Shutting down", "uptime", time.Since(a.startTime).Round(time.Second))
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
