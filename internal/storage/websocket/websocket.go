package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/trackmapper/editor/pkg/core"
	"github.com/trackmapper/editor/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL       string
	Secret    string
	SessionID string
}

// Backend streams overlay changes over WebSocket to a live map viewer.
// Layers still drawn are replayed after a reconnect.
type Backend struct {
	conn *connection
	cfg  Config

	mu    sync.Mutex
	live  map[core.LayerID][]byte
	order []core.LayerID
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = string(core.NewLayerID())
	}
	b := &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
		live: make(map[core.LayerID][]byte),
	}
	b.conn.replay = b.replayMessages
	return b
}

// Init connects to the viewer and opens the session.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}
	return b.sendEnvelopeAndWait(streaming.TypeStartSession, streaming.StartSessionPayload{SessionID: b.cfg.SessionID})
}

// Close ends the session and disconnects. The connection is closed even when
// the end_session ack never arrives.
func (b *Backend) Close() error {
	endErr := b.sendEnvelopeAndWait(streaming.TypeEndSession, nil)

	b.mu.Lock()
	b.live = make(map[core.LayerID][]byte)
	b.order = nil
	b.mu.Unlock()

	if err := b.conn.close(); err != nil {
		return err
	}
	return endErr
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// AddMarker streams a point marker.
func (b *Backend) AddMarker(pos core.Coordinate) (core.LayerID, error) {
	return b.addLayer(streaming.AddLayerPayload{
		Kind:   core.LayerMarker,
		Points: []core.Coordinate{pos},
	})
}

// AddPolyline streams a polyline.
func (b *Backend) AddPolyline(kind core.LayerKind, points []core.Coordinate, style core.Style) (core.LayerID, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("polyline without points")
	}
	return b.addLayer(streaming.AddLayerPayload{
		Kind:   kind,
		Color:  style.Color,
		Points: points,
	})
}

func (b *Backend) addLayer(p streaming.AddLayerPayload) (core.LayerID, error) {
	p.ID = core.NewLayerID()
	data, err := marshalEnvelope(streaming.TypeAddLayer, p)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.live[p.ID] = data
	b.order = append(b.order, p.ID)
	b.mu.Unlock()

	if err := b.conn.send(data); err != nil {
		b.forget(p.ID)
		return "", fmt.Errorf("stream %s layer: %w", p.Kind, err)
	}
	return p.ID, nil
}

// forget drops id from the replay set and reports whether it was live.
func (b *Backend) forget(id core.LayerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.live[id]; !ok {
		return false
	}
	delete(b.live, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveLayer streams the removal of a previously added layer.
func (b *Backend) RemoveLayer(id core.LayerID) error {
	if !b.forget(id) {
		return fmt.Errorf("unknown layer: %s", id)
	}

	data, err := marshalEnvelope(streaming.TypeRemoveLayer, streaming.RemoveLayerPayload{ID: id})
	if err != nil {
		return err
	}
	if err := b.conn.send(data); err != nil {
		return fmt.Errorf("stream layer removal: %w", err)
	}
	return nil
}

// replayMessages rebuilds the session on a fresh connection: start_session
// first, then every live layer in the order it was added.
func (b *Backend) replayMessages() [][]byte {
	start, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{SessionID: b.cfg.SessionID})
	if err != nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([][]byte, 0, len(b.order)+1)
	msgs = append(msgs, start)
	for _, id := range b.order {
		msgs = append(msgs, b.live[id])
	}
	return msgs
}
