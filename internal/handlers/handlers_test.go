package handlers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmapper/editor/internal/api"
	"github.com/trackmapper/editor/internal/dispatcher"
	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/routingtest"
	"github.com/trackmapper/editor/internal/storage/memory"
	"github.com/trackmapper/editor/internal/submission"
	"github.com/trackmapper/editor/pkg/core"
)

var testFootprint = core.Footprint{
	{Lat: 50, Lon: 10},
	{Lat: 50, Lon: 11},
	{Lat: 49, Lon: 10},
	{Lat: 49, Lon: 11},
}

type fixture struct {
	backend *routingtest.Backend
	surface *memory.Backend
	session *editor.Session
	job     *submission.Job
	svc     *Service
	console *Console
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := routingtest.New()
	backend.AddNode(1, core.Coordinate{Lat: 0, Lon: 0})
	backend.AddNode(2, core.Coordinate{Lat: 0, Lon: 1})
	backend.AddNode(3, core.Coordinate{Lat: 1, Lon: 1})
	srv := backend.Start()
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, 5*time.Second)
	notices := editor.NewNoticeQueue()
	surface := memory.New()

	session, err := editor.New(editor.Dependencies{
		Routing:  client,
		Surface:  surface,
		Notifier: notices,
	})
	require.NoError(t, err)

	job, err := submission.New(submission.Dependencies{
		Backend:  client,
		Notifier: notices,
		Config:   submission.Config{PollInterval: 10 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(job.Cancel)

	d, err := dispatcher.New(newTestLogger())
	require.NoError(t, err)

	svc := NewService(Dependencies{Session: session, Job: job})
	svc.Register(d)

	out := &bytes.Buffer{}
	return &fixture{
		backend: backend,
		surface: surface,
		session: session,
		job:     job,
		svc:     svc,
		console: NewConsole(d, notices, out),
		out:     out,
	}
}

// run executes the lines and returns what the console printed.
func (f *fixture) run(t *testing.T, lines ...string) string {
	t.Helper()
	f.out.Reset()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.console.Run(ctx, strings.NewReader(strings.Join(lines, "\n"))))
	return f.out.String()
}

func TestConsole_BuildPath(t *testing.T) {
	f := newFixture(t)

	out := f.run(t,
		"start",
		"click 0 0",
		"click 0 1",
		"closed on",
		"finish",
	)

	assert.Contains(t, out, "building path")
	assert.Contains(t, out, "2 node(s), 1 segment(s)")
	assert.Contains(t, out, "path 0: 3 node(s), closed")
	assert.Contains(t, out, "[info] Path 0 added")

	paths := f.session.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, []core.NodeID{1, 2, 1}, paths[0].Positions)
	assert.Equal(t, editor.Idle, f.session.Mode())
}

func TestConsole_TogglePath(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "path", "click 0 0", "click 1 1", "path")
	assert.Contains(t, out, "building path")
	assert.Contains(t, out, "path 0: 2 node(s)")
	assert.Equal(t, editor.Idle, f.session.Mode())
}

func TestConsole_FinishSingleNodeDiscards(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "path", "click 0 0", "path")
	assert.Contains(t, out, "path discarded")
	assert.Empty(t, f.session.Paths())
	assert.Equal(t, editor.Idle, f.session.Mode())
}

func TestConsole_ClickWhileIdle(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "click 0 0")
	assert.Contains(t, out, "click ignored")
	assert.Zero(t, f.backend.Calls("get_node"))
}

func TestConsole_NoNearbyNodeIsNoticeOnly(t *testing.T) {
	f := newFixture(t)
	f.backend.SetRadius(0.1)

	out := f.run(t, "start", "click 40 40")
	assert.Contains(t, out, "[warning] No nearby node found in clicked area")
	assert.NotContains(t, out, "error:")
}

func TestConsole_BadArguments(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "click 1")
	assert.Contains(t, out, "usage: click <lat> <lon>")

	out = f.run(t, "start", "click north 1")
	assert.Contains(t, out, `invalid latitude "north"`)

	out = f.run(t, "closed maybe")
	assert.Contains(t, out, "expected on or off")

	out = f.run(t, "delete-path x")
	assert.Contains(t, out, `invalid key "x"`)

	out = f.run(t, "frobnicate")
	assert.Contains(t, out, "unknown command")
}

func TestConsole_RasterUsesFormSpatialRef(t *testing.T) {
	f := newFixture(t)
	f.backend.AddRaster("C:/data/my dem.tif", testFootprint)

	out := f.run(t,
		`srs EPSG:32632`,
		`raster "C:\data\my dem.tif"`,
	)
	assert.Contains(t, out, "raster 0: C:/data/my dem.tif")
	assert.Contains(t, out, "[info] Raster 0 added: C:/data/my dem.tif")

	rasters := f.session.Rasters()
	require.Len(t, rasters, 1)
	assert.Equal(t, "EPSG:32632", rasters[0].SpatialRef)
	assert.Equal(t, 1, f.surface.Count(core.LayerFootprint))
}

func TestConsole_RasterBackendError(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "raster /missing.tif")
	assert.Contains(t, out, "[error] [ERROR_R0] Failed to open file: /missing.tif")
	assert.NotContains(t, out, "error: ")
	assert.Empty(t, f.session.Rasters())
}

func TestConsole_DeleteAndList(t *testing.T) {
	f := newFixture(t)
	f.backend.AddRaster("/data/a.tif", testFootprint)

	f.run(t, "start", "click 0 0", "click 0 1", "finish", "raster /data/a.tif")

	out := f.run(t, "list")
	assert.Contains(t, out, "Paths")
	assert.Contains(t, out, "1 2")
	assert.Contains(t, out, "/data/a.tif")

	f.run(t, "delete-path 0", "delete-raster 0")
	assert.Empty(t, f.session.Paths())
	assert.Empty(t, f.session.Rasters())
	assert.Zero(t, f.surface.Count(core.LayerSegment))
	assert.Zero(t, f.surface.Count(core.LayerFootprint))

	out = f.run(t, "delete-path 0")
	assert.Contains(t, out, "error:")
}

func TestConsole_ErrorShownAlongsideUnrelatedNotices(t *testing.T) {
	f := newFixture(t)

	// The poller pushes notices from its own goroutine at any time.
	f.console.notices.Notify(editor.Notice{Level: editor.NoticeInfo, Message: "Processing rasters"})
	f.console.Exec(context.Background(), "delete-path 99")

	out := f.out.String()
	assert.Contains(t, out, "[info] Processing rasters")
	assert.Contains(t, out, "error: unknown path: 99")
}

func TestConsole_ReportedErrorNotRepeated(t *testing.T) {
	f := newFixture(t)
	f.backend.SetRadius(0.1)
	f.run(t, "start")

	f.out.Reset()
	f.console.notices.Notify(editor.Notice{Level: editor.NoticeInfo, Message: "Rendering"})
	f.console.Exec(context.Background(), "click 40 40")

	out := f.out.String()
	assert.Contains(t, out, "[info] Rendering")
	assert.Contains(t, out, "[warning] No nearby node found in clicked area")
	assert.NotContains(t, out, "error:")
}

func TestConsole_SubmitAndWait(t *testing.T) {
	f := newFixture(t)
	f.backend.AddRaster("/data/a.tif", testFootprint)
	f.backend.ScriptProgress(
		core.ProgressState{Progress: "Rendering"},
		core.ProgressState{Progress: "Done", Finished: true},
	)

	out := f.run(t,
		"raster /data/a.tif",
		"start", "click 0 0", "click 0 1", "finish",
		"name  My Track",
		"output /out/track.tif",
		"submit",
		"wait",
		"status",
	)

	assert.Contains(t, out, `[info] Track "My Track" submitted`)
	assert.Contains(t, out, submission.FinishedMessage)
	assert.Contains(t, out, "finished")

	payloads := f.backend.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "My Track", payloads[0].Name)
	assert.Equal(t, "/out/track.tif", payloads[0].Output)
	assert.Equal(t, []string{"/data/a.tif"}, payloads[0].Rasters)
	assert.Equal(t, [][]core.NodeID{{1, 2}}, payloads[0].Paths)
}

func TestConsole_SubmitRejected(t *testing.T) {
	f := newFixture(t)
	f.backend.RejectSubmissions("[ERROR_T0] No rasters given")

	out := f.run(t, "submit", "status")
	assert.Contains(t, out, "[error] [ERROR_T0] No rasters given")
	assert.Contains(t, out, "not-started")
}

func TestConsole_Cancel(t *testing.T) {
	f := newFixture(t)
	f.backend.ScriptProgress(core.ProgressState{Progress: "Rendering"})

	out := f.run(t, "submit", "cancel", "status")
	assert.Contains(t, out, "failed")
	assert.Equal(t, submission.Failed, f.job.Snapshot().State)
}

func TestConsole_CommentsAndHelp(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "# a comment", "", "help")
	assert.Contains(t, out, "click <lat> <lon>")
	assert.Contains(t, out, "delete-raster <key>")
}

func TestConsole_QuitStopsReading(t *testing.T) {
	f := newFixture(t)

	f.run(t, "start", "quit", "abandon")
	assert.Equal(t, editor.BuildingPath, f.session.Mode())
}

func TestConsole_SubmissionNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Job = nil

	out := f.run(t, "submit")
	assert.Contains(t, out, "submission is not configured")
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"click 1 2", []string{"click", "1", "2"}},
		{"  raster   /a.tif  ", []string{"raster", "/a.tif"}},
		{`raster "C:\My Data\a.tif" EPSG:4326`, []string{"raster", `C:\My Data\a.tif`, "EPSG:4326"}},
		{`name ""`, []string{"name", ""}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := SplitArgs(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SplitArgs(`raster "unterminated`)
	assert.Error(t, err)
}

func TestFormState(t *testing.T) {
	var f FormState
	f.Update(func(form *submission.Form) { form.Name = "x" })
	assert.Equal(t, "x", f.Get().Name)
}
