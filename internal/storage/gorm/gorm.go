// Package gormstorage implements storage.Backend on top of a gorm
// connection. Each process writes under its own session row; the SQLite and
// Postgres surfaces only differ in how the connection is opened.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/trackmapper/editor/internal/database"
	"github.com/trackmapper/editor/internal/geo"
	"github.com/trackmapper/editor/internal/model"
	"github.com/trackmapper/editor/pkg/core"
)

// Dependencies holds the connection and logger for the backend.
type Dependencies struct {
	DB        *gorm.DB
	SessionID string
	Logger    zerolog.Logger
}

// Backend stores layers as rows of the layers table.
type Backend struct {
	db        *gorm.DB
	sessionID string
	log       zerolog.Logger

	mu  sync.Mutex
	seq uint
}

// New creates a new gorm backend. A session id is generated when none is
// given.
func New(deps Dependencies) *Backend {
	if deps.SessionID == "" {
		deps.SessionID = string(core.NewLayerID())
	}
	return &Backend{
		db:        deps.DB,
		sessionID: deps.SessionID,
		log:       deps.Logger.With().Str("session", deps.SessionID).Logger(),
	}
}

// SessionID returns the id layers are written under.
func (b *Backend) SessionID() string {
	return b.sessionID
}

// Init migrates the schema and registers the session.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}
	if err := database.Migrate(b.db, b.log); err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	session := &model.EditSession{
		ID:        b.sessionID,
		StartedAt: time.Now(),
		Hostname:  hostname,
	}
	if err := b.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	b.log.Info().Msg("Editing session registered")
	return nil
}

// Close removes every row written by this session.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", b.sessionID).Delete(&model.Layer{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", b.sessionID).Delete(&model.EditSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to clear session %s: %w", b.sessionID, err)
	}
	b.log.Info().Msg("Editing session cleared")
	return nil
}

// AddMarker inserts a point layer.
func (b *Backend) AddMarker(pos core.Coordinate) (core.LayerID, error) {
	return b.insert(core.LayerMarker, "", []core.Coordinate{pos})
}

// AddPolyline inserts a line layer. A route between a node and itself has a
// single point and is stored as a point geometry.
func (b *Backend) AddPolyline(kind core.LayerKind, points []core.Coordinate, style core.Style) (core.LayerID, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("polyline without points")
	}
	return b.insert(kind, style.Color, points)
}

func (b *Backend) insert(kind core.LayerKind, color string, points []core.Coordinate) (core.LayerID, error) {
	wgs, merc := geometries(points)

	raw, err := geojson.NewGeometry(wgs).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal layer geometry: %w", err)
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	id := core.NewLayerID()
	row := &model.Layer{
		ID:        string(id),
		SessionID: b.sessionID,
		Seq:       seq,
		Kind:      string(kind),
		Color:     color,
		Geometry:  datatypes.JSON(raw),
		Mercator:  wkt.MarshalString(merc),
	}
	if err := b.db.Create(row).Error; err != nil {
		return "", fmt.Errorf("insert %s layer: %w", kind, err)
	}
	b.log.Debug().Str("layer", row.ID).Str("kind", row.Kind).Msg("Layer inserted")
	return id, nil
}

// RemoveLayer deletes a layer written by this session.
func (b *Backend) RemoveLayer(id core.LayerID) error {
	res := b.db.Where("id = ? AND session_id = ?", string(id), b.sessionID).Delete(&model.Layer{})
	if res.Error != nil {
		return fmt.Errorf("delete layer %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("unknown layer: %s", id)
	}
	return nil
}

// Layers returns this session's layers in insertion order.
func (b *Backend) Layers() ([]core.Layer, error) {
	var rows []model.Layer
	if err := b.db.Where("session_id = ?", b.sessionID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}

	out := make([]core.Layer, 0, len(rows))
	for _, row := range rows {
		points, err := decodePoints(row.Geometry)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", row.ID, err)
		}
		out = append(out, core.Layer{
			ID:     core.LayerID(row.ID),
			Kind:   core.LayerKind(row.Kind),
			Style:  core.Style{Color: row.Color},
			Points: points,
		})
	}
	return out, nil
}

// geometries returns the WGS84 geometry and its EPSG:3857 projection.
func geometries(points []core.Coordinate) (orb.Geometry, orb.Geometry) {
	if len(points) == 1 {
		x, y := geo.ToWebMercator(points[0])
		return orb.Point{points[0].Lon, points[0].Lat}, orb.Point{x, y}
	}

	wgs := make(orb.LineString, 0, len(points))
	merc := make(orb.LineString, 0, len(points))
	for _, p := range points {
		wgs = append(wgs, orb.Point{p.Lon, p.Lat})
		x, y := geo.ToWebMercator(p)
		merc = append(merc, orb.Point{x, y})
	}
	return wgs, merc
}

func decodePoints(raw datatypes.JSON) ([]core.Coordinate, error) {
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}

	switch v := g.Geometry().(type) {
	case orb.Point:
		return []core.Coordinate{{Lat: v.Lat(), Lon: v.Lon()}}, nil
	case orb.LineString:
		out := make([]core.Coordinate, len(v))
		for i, p := range v {
			out[i] = core.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected geometry %s", g.Type)
	}
}
