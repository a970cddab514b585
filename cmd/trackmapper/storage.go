package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trackmapper/editor/internal/config"
	"github.com/trackmapper/editor/internal/storage"
	"github.com/trackmapper/editor/internal/storage/memory"
	pgstorage "github.com/trackmapper/editor/internal/storage/postgres"
	sqlitestorage "github.com/trackmapper/editor/internal/storage/sqlite"
	wsstorage "github.com/trackmapper/editor/internal/storage/websocket"
)

// createStorageBackend builds the rendering surface selected by config. The
// returned id names the session on shared surfaces and is empty for memory.
func createStorageBackend(cfg config.StorageConfig, serverURL, sessionID string, zlog zerolog.Logger, log *slog.Logger) (storage.Backend, string, error) {
	if err := storage.ValidateType(cfg.Type); err != nil {
		return nil, "", err
	}

	switch cfg.Type {
	case "postgres":
		backend, err := pgstorage.New(cfg.DB, zlog)
		if err != nil {
			return nil, "", err
		}
		log.Info("Postgres storage backend initialized", "host", cfg.DB.Host, "database", cfg.DB.Database)
		return backend, backend.SessionID(), nil

	case "sqlite":
		backend, err := sqlitestorage.New(zlog)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info("SQLite storage backend initialized")
		return backend, backend.SessionID(), nil

	case "websocket":
		wsURL := cfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(serverURL) + "/api/v1/editor/stream"
		}
		log.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:       wsURL,
			Secret:    cfg.WebSocket.Secret,
			SessionID: sessionID,
		}, log), sessionID, nil

	default:
		log.Info("Memory storage backend initialized")
		return memory.New(), "", nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
