package gormstorage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmapper/editor/internal/database"
	"github.com/trackmapper/editor/internal/model"
	"github.com/trackmapper/editor/internal/storage"
	"github.com/trackmapper/editor/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Lister  = (*Backend)(nil)
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite(zerolog.Nop())
	require.NoError(t, err)

	b := New(Dependencies{DB: db, SessionID: "session-1", Logger: zerolog.Nop()})
	require.NoError(t, b.Init())
	return b
}

func TestNew_GeneratesSessionID(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()})
	assert.NotEmpty(t, b.SessionID())
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()})
	require.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestInit_RegistersSession(t *testing.T) {
	b := newTestBackend(t)

	var sessions []model.EditSession
	require.NoError(t, b.db.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session-1", sessions[0].ID)
}

func TestAddMarker(t *testing.T) {
	b := newTestBackend(t)

	id, err := b.AddMarker(core.Coordinate{Lat: 49.5, Lon: 10.25})
	require.NoError(t, err)

	var row model.Layer
	require.NoError(t, b.db.First(&row, "id = ?", string(id)).Error)
	assert.Equal(t, "marker", row.Kind)
	assert.Equal(t, "session-1", row.SessionID)
	assert.Contains(t, string(row.Geometry), `"Point"`)
	assert.Contains(t, row.Mercator, "POINT")
}

func TestAddPolyline_RoundTripsThroughLayers(t *testing.T) {
	b := newTestBackend(t)
	pts := []core.Coordinate{{Lat: 49, Lon: 10}, {Lat: 49.1, Lon: 10.1}, {Lat: 49.2, Lon: 10.3}}

	markerID, err := b.AddMarker(pts[0])
	require.NoError(t, err)
	segID, err := b.AddPolyline(core.LayerSegment, pts, core.SegmentStyle)
	require.NoError(t, err)

	layers, err := b.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.Equal(t, markerID, layers[0].ID)
	assert.Equal(t, core.LayerMarker, layers[0].Kind)

	assert.Equal(t, segID, layers[1].ID)
	assert.Equal(t, core.LayerSegment, layers[1].Kind)
	assert.Equal(t, "red", layers[1].Style.Color)
	assert.Equal(t, pts, layers[1].Points)
}

func TestAddPolyline_Empty(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.AddPolyline(core.LayerSegment, nil, core.SegmentStyle)
	assert.Error(t, err)
}

func TestAddPolyline_SinglePointRoute(t *testing.T) {
	b := newTestBackend(t)
	pt := core.Coordinate{Lat: 1, Lon: 1}
	id, err := b.AddPolyline(core.LayerSegment, []core.Coordinate{pt}, core.SegmentStyle)
	require.NoError(t, err)

	layers, err := b.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, id, layers[0].ID)
	assert.Equal(t, core.LayerSegment, layers[0].Kind)
	assert.Equal(t, []core.Coordinate{pt}, layers[0].Points)

	var row model.Layer
	require.NoError(t, b.db.First(&row, "id = ?", string(id)).Error)
	assert.Contains(t, row.Mercator, "POINT")
}

func TestAddPolyline_StoresMercator(t *testing.T) {
	b := newTestBackend(t)
	id, err := b.AddPolyline(core.LayerFootprint, []core.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 180}}, core.FootprintStyle)
	require.NoError(t, err)

	var row model.Layer
	require.NoError(t, b.db.First(&row, "id = ?", string(id)).Error)
	assert.Equal(t, "green", row.Color)
	assert.Contains(t, row.Mercator, "LINESTRING")
	assert.Contains(t, row.Mercator, "20037508")
}

func TestRemoveLayer(t *testing.T) {
	b := newTestBackend(t)
	id, err := b.AddMarker(core.Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)

	require.NoError(t, b.RemoveLayer(id))

	err = b.RemoveLayer(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown layer")
}

func TestRemoveLayer_OtherSessionUntouched(t *testing.T) {
	b := newTestBackend(t)
	other := New(Dependencies{DB: b.db, SessionID: "session-2", Logger: zerolog.Nop()})
	require.NoError(t, other.Init())

	id, err := other.AddMarker(core.Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)

	assert.Error(t, b.RemoveLayer(id))

	layers, err := other.Layers()
	require.NoError(t, err)
	assert.Len(t, layers, 1)
}

func TestClose_ClearsSessionRows(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.AddMarker(core.Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)

	require.NoError(t, b.Close())

	var layers, sessions int64
	require.NoError(t, b.db.Model(&model.Layer{}).Count(&layers).Error)
	require.NoError(t, b.db.Model(&model.EditSession{}).Count(&sessions).Error)
	assert.Zero(t, layers)
	assert.Zero(t, sessions)
}
