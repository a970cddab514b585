// Package routingtest provides an in-process fake of the track mapper
// backend for tests. The graph is a plain set of nodes; every pair of nodes
// is connected by a straight two point route unless marked unreachable.
package routingtest

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/trackmapper/editor/pkg/core"
)

// Backend is a programmable fake backend.
type Backend struct {
	mu sync.Mutex

	radius float64

	nodes       map[core.NodeID]core.Coordinate
	unreachable map[[2]core.NodeID]bool
	rasters     map[string]rasterResult
	submitError string
	progress    []core.ProgressState
	statusCode  map[string]int

	payloads []core.SubmissionPayload
	calls    map[string]int
}

type rasterResult struct {
	footprint core.Footprint
	err       string
}

// New creates an empty fake backend.
func New() *Backend {
	return &Backend{
		nodes:       make(map[core.NodeID]core.Coordinate),
		unreachable: make(map[[2]core.NodeID]bool),
		rasters:     make(map[string]rasterResult),
		statusCode:  make(map[string]int),
		calls:       make(map[string]int),
	}
}

// AddNode places a node in the graph.
func (b *Backend) AddNode(id core.NodeID, pos core.Coordinate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[id] = pos
}

// SetRadius sets the maximum matching distance in degrees for nearest node
// lookups. Zero means unlimited.
func (b *Backend) SetRadius(r float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.radius = r
}

// Disconnect makes the route between a and b unresolvable in both directions.
func (b *Backend) Disconnect(a, c core.NodeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable[[2]core.NodeID{a, c}] = true
	b.unreachable[[2]core.NodeID{c, a}] = true
}

// AddRaster registers a raster file the backend can open.
func (b *Backend) AddRaster(filePath string, fp core.Footprint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rasters[filePath] = rasterResult{footprint: fp}
}

// FailRaster makes footprint requests for filePath report msg.
func (b *Backend) FailRaster(filePath, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rasters[filePath] = rasterResult{err: msg}
}

// RejectSubmissions makes track submissions report msg. An empty msg
// accepts them again.
func (b *Backend) RejectSubmissions(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitError = msg
}

// ScriptProgress sets the sequence of progress states returned by successive
// polls. The last state repeats once the script is exhausted.
func (b *Backend) ScriptProgress(states ...core.ProgressState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = append([]core.ProgressState(nil), states...)
}

// FailRoute makes every request to the named route answer with code.
// Route names are the ones counted by Calls.
func (b *Backend) FailRoute(route string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCode[route] = code
}

// Payloads returns the accepted and rejected submissions in order.
func (b *Backend) Payloads() []core.SubmissionPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.SubmissionPayload(nil), b.payloads...)
}

// Calls returns how often the named route was requested.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Start serves the backend on a local test server. The server is closed
// when the caller invokes the returned server's Close.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

// Handler returns the gin engine implementing the backend routes.
func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true

	api := r.Group("/api")
	{
		api.GET("/get_node/:lat/:lon", b.track("get_node", b.getNode))
		api.GET("/get_location/:id", b.track("get_location", b.getLocation))
		api.GET("/get_path/:from/:to", b.track("get_path", b.getPath))
		api.GET("/get_raster_extend/:req", b.track("get_raster_extend", b.getRasterExtend))
		api.GET("/create_track/:req", b.track("create_track", b.createTrack))
		api.GET("/get_progress", b.track("get_progress", b.getProgress))
	}
	return r
}

func (b *Backend) track(route string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.calls[route]++
		code := b.statusCode[route]
		b.mu.Unlock()

		if code != 0 {
			c.Status(code)
			return
		}
		h(c)
	}
}

func (b *Backend) getNode(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Param("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Param("lon"), 64)
	if err1 != nil || err2 != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	best := core.NoNode
	bestDist := math.Inf(1)
	for id, pos := range b.nodes {
		d := math.Hypot(pos.Lat-lat, pos.Lon-lon)
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	if b.radius > 0 && bestDist > b.radius {
		best = core.NoNode
	}
	c.JSON(http.StatusOK, gin.H{"nodeId": best})
}

func (b *Backend) getLocation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	pos, ok := b.nodes[core.NodeID(id)]
	b.mu.Unlock()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lat": pos.Lat, "lon": pos.Lon})
}

func (b *Backend) getPath(c *gin.Context) {
	from, err1 := strconv.ParseInt(c.Param("from"), 10, 64)
	to, err2 := strconv.ParseInt(c.Param("to"), 10, 64)
	if err1 != nil || err2 != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a, okA := b.nodes[core.NodeID(from)]
	z, okZ := b.nodes[core.NodeID(to)]
	if !okA || !okZ || b.unreachable[[2]core.NodeID{core.NodeID(from), core.NodeID(to)}] {
		c.JSON(http.StatusOK, gin.H{"distance": -1, "nodes": []gin.H{}})
		return
	}

	if from == to {
		c.JSON(http.StatusOK, gin.H{
			"distance": 0,
			"nodes":    []gin.H{{"nodeId": from, "lat": a.Lat, "lon": a.Lon}},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"distance": math.Hypot(a.Lat-z.Lat, a.Lon-z.Lon),
		"nodes": []gin.H{
			{"nodeId": from, "lat": a.Lat, "lon": a.Lon},
			{"nodeId": to, "lat": z.Lat, "lon": z.Lon},
		},
	})
}

func (b *Backend) getRasterExtend(c *gin.Context) {
	var req struct {
		FilePath string `json:"filePath"`
		ProjRef  string `json:"projRef"`
	}
	if !decodeParam(c, &req) {
		return
	}

	b.mu.Lock()
	res, ok := b.rasters[req.FilePath]
	b.mu.Unlock()

	switch {
	case !ok:
		c.JSON(http.StatusOK, gin.H{"error": "[ERROR_R0] Failed to open file: " + req.FilePath})
	case res.err != "":
		c.JSON(http.StatusOK, gin.H{"error": res.err})
	default:
		c.JSON(http.StatusOK, gin.H{"corners": res.footprint[:]})
	}
}

func (b *Backend) createTrack(c *gin.Context) {
	var payload core.SubmissionPayload
	if !decodeParam(c, &payload) {
		return
	}

	b.mu.Lock()
	b.payloads = append(b.payloads, payload)
	msg := b.submitError
	b.mu.Unlock()

	if msg != "" {
		c.JSON(http.StatusOK, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (b *Backend) getProgress(c *gin.Context) {
	b.mu.Lock()
	state := core.ProgressState{Progress: "Idle"}
	if len(b.progress) > 0 {
		state = b.progress[0]
		if len(b.progress) > 1 {
			b.progress = b.progress[1:]
		}
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, state)
}

func decodeParam(c *gin.Context, out any) bool {
	raw, err := base64.StdEncoding.DecodeString(c.Param("req"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.Status(http.StatusBadRequest)
		return false
	}
	return true
}
