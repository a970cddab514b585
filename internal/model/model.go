package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&EditSession{},
	&Layer{},
}

// EditSession is one editor process drawing onto a shared surface
type EditSession struct {
	ID        string    `json:"id" gorm:"primarykey;size:36"`
	StartedAt time.Time `json:"startedAt"`
	Hostname  string    `json:"hostname" gorm:"size:128"`
}

func (*EditSession) TableName() string {
	return "edit_sessions"
}

// Layer is one overlay drawn by an editing session
type Layer struct {
	ID        string         `json:"id" gorm:"primarykey;size:36"`
	CreatedAt time.Time      `json:"createdAt"`
	SessionID string         `json:"sessionId" gorm:"size:36;index:idx_layer_session_id"`
	Session   EditSession    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq       uint           `json:"seq" gorm:"index:idx_layer_seq"`  // Insertion order within the session
	Kind      string         `json:"kind" gorm:"size:16"`             // marker, segment, footprint
	Color     string         `json:"color" gorm:"size:32"`            // Stroke color, empty for markers
	Geometry  datatypes.JSON `json:"geometry"`                        // GeoJSON in WGS84 (lon, lat)
	Mercator  string         `json:"mercator"`                        // WKT in EPSG:3857 for tile renderers
}

func (*Layer) TableName() string {
	return "layers"
}
