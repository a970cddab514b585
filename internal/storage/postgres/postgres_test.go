package postgres

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmapper/editor/internal/config"
	"github.com/trackmapper/editor/internal/database"
	"github.com/trackmapper/editor/internal/storage"
	"github.com/trackmapper/editor/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew_Unreachable(t *testing.T) {
	_, err := New(config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "x",
		Database: "trackmapper",
	}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to postgres")
}

// The layer logic is dialect independent, so it runs against SQLite here.
func TestNewWithDB_Lifecycle(t *testing.T) {
	db, err := database.OpenSQLite(zerolog.Nop())
	require.NoError(t, err)

	b := NewWithDB(db, zerolog.Nop())
	require.NoError(t, b.Init())

	id, err := b.AddPolyline(core.LayerSegment, []core.Coordinate{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}, core.SegmentStyle)
	require.NoError(t, err)
	require.NoError(t, b.RemoveLayer(id))
	require.NoError(t, b.Close())
}
