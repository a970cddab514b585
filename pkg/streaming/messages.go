package streaming

import (
	"encoding/json"

	"github.com/trackmapper/editor/pkg/core"
)

// Message type constants matching the viewer streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeAddLayer     = "add_layer"
	TypeRemoveLayer  = "remove_layer"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type  string `json:"type"`            // always "ack"
	For   string `json:"for"`             // the message type being acknowledged
	Error string `json:"error,omitempty"` // set when the viewer refused the message
}

// StartSessionPayload identifies the editing session to the viewer.
type StartSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// AddLayerPayload carries one overlay to draw.
type AddLayerPayload struct {
	ID     core.LayerID      `json:"id"`
	Kind   core.LayerKind    `json:"kind"`
	Color  string            `json:"color,omitempty"`
	Points []core.Coordinate `json:"points"`
}

// RemoveLayerPayload names an overlay to erase.
type RemoveLayerPayload struct {
	ID core.LayerID `json:"id"`
}
