package submission

import (
	"strings"

	"github.com/trackmapper/editor/pkg/core"
)

// Source provides the collections a track is built from.
type Source interface {
	PathNodeSequences() [][]core.NodeID
	RasterFilePaths() []string
}

// Form holds the user-entered submission fields.
type Form struct {
	Name       string
	Output     string
	SpatialRef string
}

// BuildPayload assembles a submission from the current collections. A blank
// name becomes defaultName. Empty collections are sent as empty lists.
func BuildPayload(src Source, form Form, defaultName string) core.SubmissionPayload {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		name = defaultName
	}

	paths := src.PathNodeSequences()
	if paths == nil {
		paths = [][]core.NodeID{}
	}
	rasters := src.RasterFilePaths()
	if rasters == nil {
		rasters = []string{}
	}

	return core.SubmissionPayload{
		Name:    name,
		Rasters: rasters,
		Paths:   paths,
		Output:  strings.TrimSpace(form.Output),
		WKT:     strings.TrimSpace(form.SpatialRef),
	}
}
