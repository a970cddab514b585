// internal/api/client.go
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trackmapper/editor/pkg/core"
)

// Client handles communication with the track mapper backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type nodeResponse struct {
	NodeID *int64 `json:"nodeId"`
}

type locationResponse struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type pathResponse struct {
	Distance float64           `json:"distance"`
	Nodes    []core.Coordinate `json:"nodes"`
}

type footprintRequest struct {
	FilePath string `json:"filePath"`
	ProjRef  string `json:"projRef,omitempty"`
}

type footprintResponse struct {
	Corners []core.Coordinate `json:"corners"`
	Error   *string           `json:"error"`
}

type createTrackResponse struct {
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

// NearestNode returns the graph node closest to c, or core.NoNode when the
// backend found none within its matching radius.
func (c *Client) NearestNode(ctx context.Context, pos core.Coordinate) (core.NodeID, error) {
	var res nodeResponse
	path := "/api/get_node/" + formatFloat(pos.Lat) + "/" + formatFloat(pos.Lon)
	if err := c.getJSON(ctx, "nearest node", path, &res); err != nil {
		return core.NoNode, err
	}
	if res.NodeID == nil {
		return core.NoNode, fmt.Errorf("nearest node: %w: missing nodeId", ErrMalformedResponse)
	}
	return core.NodeID(*res.NodeID), nil
}

// NodeLocation resolves the coordinate of a graph node.
func (c *Client) NodeLocation(ctx context.Context, id core.NodeID) (core.Coordinate, error) {
	var res locationResponse
	path := "/api/get_location/" + strconv.FormatInt(int64(id), 10)
	if err := c.getJSON(ctx, "node location", path, &res); err != nil {
		return core.Coordinate{}, err
	}
	if res.Lat == nil || res.Lon == nil {
		return core.Coordinate{}, fmt.Errorf("node location: %w: missing lat/lon", ErrMalformedResponse)
	}
	return core.Coordinate{Lat: *res.Lat, Lon: *res.Lon}, nil
}

// ShortestPath requests the route between two nodes. A route that was not
// found is not an error; check core.Route.Found.
func (c *Client) ShortestPath(ctx context.Context, from, to core.NodeID) (core.Route, error) {
	var res pathResponse
	path := "/api/get_path/" + strconv.FormatInt(int64(from), 10) + "/" + strconv.FormatInt(int64(to), 10)
	if err := c.getJSON(ctx, "shortest path", path, &res); err != nil {
		return core.Route{}, err
	}
	return core.Route{Distance: res.Distance, Points: res.Nodes}, nil
}

// RasterFootprint asks the backend for the georeferenced corners of a raster
// file. spatialRef overrides the projection stored in the file when set.
// Errors reported by the backend are returned as *BackendError.
func (c *Client) RasterFootprint(ctx context.Context, filePath, spatialRef string) (core.Footprint, error) {
	encoded, err := encodeRequest(footprintRequest{FilePath: filePath, ProjRef: spatialRef})
	if err != nil {
		return core.Footprint{}, fmt.Errorf("raster footprint: %w", err)
	}

	var res footprintResponse
	if err := c.getJSON(ctx, "raster footprint", "/api/get_raster_extend/"+encoded, &res); err != nil {
		return core.Footprint{}, err
	}
	if res.Error != nil {
		return core.Footprint{}, &BackendError{Op: "raster footprint", Message: *res.Error}
	}
	if len(res.Corners) != 4 {
		return core.Footprint{}, fmt.Errorf("raster footprint: %w: expected 4 corners, got %d", ErrMalformedResponse, len(res.Corners))
	}

	var fp core.Footprint
	copy(fp[:], res.Corners)
	return fp, nil
}

// CreateTrack submits a track for processing. A rejection by the backend is
// returned as *BackendError.
func (c *Client) CreateTrack(ctx context.Context, payload core.SubmissionPayload) error {
	encoded, err := encodeRequest(payload)
	if err != nil {
		return fmt.Errorf("create track: %w", err)
	}

	var res createTrackResponse
	if err := c.getJSON(ctx, "create track", "/api/create_track/"+encoded, &res); err != nil {
		return err
	}
	if res.Error != nil && *res.Error != "" {
		return &BackendError{Op: "create track", Message: *res.Error}
	}
	return nil
}

// Progress fetches the state of the running track creation.
func (c *Client) Progress(ctx context.Context) (core.ProgressState, error) {
	var res core.ProgressState
	if err := c.getJSON(ctx, "progress", "/api/get_progress", &res); err != nil {
		return core.ProgressState{}, err
	}
	return res, nil
}

// Healthcheck checks if the backend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.Progress(ctx)
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// encodeRequest serializes v as JSON and base64 encodes it for use as a
// single path segment.
func encodeRequest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	return url.PathEscape(base64.StdEncoding.EncodeToString(raw)), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
