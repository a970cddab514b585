// Package plan applies a YAML track plan to an editing session: rasters are
// registered, paths are clicked in order and the track is optionally
// submitted.
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trackmapper/editor/internal/submission"
	"github.com/trackmapper/editor/pkg/core"
)

// ErrInvalidPlan is wrapped by every validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Raster is a raster file to register.
type Raster struct {
	Path       string `yaml:"path"`
	SpatialRef string `yaml:"spatialRef"`
}

// Path is a sequence of map clicks forming one path.
type Path struct {
	Closed bool        `yaml:"closed"`
	Clicks [][]float64 `yaml:"clicks"`
}

// Coordinates returns the clicks as lat/lon pairs.
func (p Path) Coordinates() []core.Coordinate {
	out := make([]core.Coordinate, len(p.Clicks))
	for i, c := range p.Clicks {
		out[i] = core.Coordinate{Lat: c[0], Lon: c[1]}
	}
	return out
}

// Plan is a complete, non-interactive editing session.
type Plan struct {
	Name       string   `yaml:"name"`
	Output     string   `yaml:"output"`
	SpatialRef string   `yaml:"spatialRef"`
	Rasters    []Raster `yaml:"rasters"`
	Paths      []Path   `yaml:"paths"`
	Submit     bool     `yaml:"submit"`
}

// Form returns the submission form described by the plan.
func (p *Plan) Form() submission.Form {
	return submission.Form{
		Name:       p.Name,
		Output:     p.Output,
		SpatialRef: p.SpatialRef,
	}
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every raster has a path and every click is a
// lat/lon pair.
func (p *Plan) Validate() error {
	for i, r := range p.Rasters {
		if strings.TrimSpace(r.Path) == "" {
			return fmt.Errorf("%w: raster %d has no path", ErrInvalidPlan, i)
		}
	}
	for i, path := range p.Paths {
		for j, c := range path.Clicks {
			if len(c) != 2 {
				return fmt.Errorf("%w: path %d click %d: want [lat, lon], got %d value(s)", ErrInvalidPlan, i, j, len(c))
			}
			if c[0] < -90 || c[0] > 90 {
				return fmt.Errorf("%w: path %d click %d: latitude %v out of range", ErrInvalidPlan, i, j, c[0])
			}
		}
	}
	if !p.Submit && len(p.Rasters) == 0 && len(p.Paths) == 0 {
		return fmt.Errorf("%w: nothing to do", ErrInvalidPlan)
	}
	return nil
}
