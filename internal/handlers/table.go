package handlers

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/submission"
	"github.com/trackmapper/editor/pkg/core"
)

func newTable() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	return w
}

// renderCollections lists the draft, the completed paths and the rasters.
func renderCollections(s *editor.Session) string {
	var b strings.Builder

	if d := s.Draft(); d != nil {
		fmt.Fprintf(&b, "draft: %s, closed=%t\n", joinNodes(d.Positions), d.Closed)
	}

	paths := newTable()
	paths.SetTitle("Paths")
	paths.AppendHeader(table.Row{"Key", "Nodes", "Segments", "Closed"})
	for _, p := range s.Paths() {
		paths.AppendRow(table.Row{p.Key, joinNodes(p.Positions), len(p.Segments), p.Closed})
	}
	paths.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 60},
	})
	b.WriteString(paths.Render())
	b.WriteString("\n")

	rasters := newTable()
	rasters.SetTitle("Rasters")
	rasters.AppendHeader(table.Row{"Key", "File", "Spatial ref"})
	for _, r := range s.Rasters() {
		rasters.AppendRow(table.Row{r.Key, r.FilePath, r.SpatialRef})
	}
	rasters.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 40},
	})
	b.WriteString(rasters.Render())

	return b.String()
}

// renderSnapshot formats the job state as a two column table.
func renderSnapshot(snap submission.Snapshot) string {
	w := newTable()
	w.AppendRow(table.Row{"State", snap.State.String()})
	if snap.Track != "" {
		w.AppendRow(table.Row{"Track", snap.Track})
	}
	if snap.Progress.Progress != "" {
		w.AppendRow(table.Row{"Progress", snap.Progress.Progress})
	}
	w.AppendRow(table.Row{"Polls", snap.Polls})
	if snap.Err != nil {
		w.AppendRow(table.Row{"Error", snap.Err.Error()})
	}
	return w.Render()
}

func joinNodes(ids []core.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
