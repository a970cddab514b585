package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trackmapper/editor/internal/api"
	"github.com/trackmapper/editor/internal/geo"
	"github.com/trackmapper/editor/pkg/core"
)

// NormalizeFilePath trims a raster path and turns backslashes into forward
// slashes.
func NormalizeFilePath(filePath string) string {
	return strings.ReplaceAll(strings.TrimSpace(filePath), `\`, "/")
}

// FetchFootprint asks the backend for a raster's corners without touching
// the session. Errors reported by the backend are surfaced as notices.
func (s *Session) FetchFootprint(ctx context.Context, filePath, spatialRef string) (core.Footprint, error) {
	filePath = NormalizeFilePath(filePath)
	if filePath == "" {
		s.notify(NoticeError, ErrEmptyFilePath.Error())
		return core.Footprint{}, Reported(ErrEmptyFilePath)
	}

	fp, err := s.routing.RasterFootprint(ctx, filePath, strings.TrimSpace(spatialRef))
	if err != nil {
		var be *api.BackendError
		if errors.As(err, &be) {
			s.notify(NoticeError, be.Message)
			s.log.Warn("raster rejected", "file", filePath, "code", api.ErrorCode(be.Message), "error", be.Message)
		} else {
			s.notify(NoticeError, err.Error())
			s.log.Error("raster footprint failed", "file", filePath, "error", err)
		}
		return core.Footprint{}, Reported(err)
	}
	return fp, nil
}

// AddRaster renders a fetched footprint and stores the raster under the
// next raster key.
func (s *Session) AddRaster(filePath, spatialRef string, fp core.Footprint) (*RasterEntry, error) {
	filePath = NormalizeFilePath(filePath)
	outline := geo.Outline(fp)
	if !geo.IsSimpleRing(outline) {
		s.log.Warn("raster footprint is not a simple ring", "file", filePath, "outline", geo.WKT(outline))
	}

	layer, err := s.surface.AddPolyline(core.LayerFootprint, outline, core.FootprintStyle)
	if err != nil {
		s.notify(NoticeError, err.Error())
		return nil, Reported(fmt.Errorf("render footprint: %w", err))
	}

	key := s.nextRasterKey
	s.nextRasterKey++
	entry := &RasterEntry{
		Key:        key,
		FilePath:   filePath,
		SpatialRef: strings.TrimSpace(spatialRef),
		Footprint:  fp,
		Outline:    outline,
		Layer:      layer,
	}
	s.rasters[key] = entry
	s.rastersRegistered.Add(context.Background(), 1)
	s.notify(NoticeInfo, fmt.Sprintf("Raster %d added: %s", key, filePath))
	s.log.Info("raster registered", "key", key, "file", filePath)

	out := *entry
	return &out, nil
}

// RegisterRaster fetches a raster's footprint and registers it. Nothing
// changes when the backend reports an error.
func (s *Session) RegisterRaster(ctx context.Context, filePath, spatialRef string) (*RasterEntry, error) {
	fp, err := s.FetchFootprint(ctx, filePath, spatialRef)
	if err != nil {
		return nil, err
	}
	return s.AddRaster(filePath, spatialRef, fp)
}

// DeleteRaster removes a raster and its footprint.
func (s *Session) DeleteRaster(key int) error {
	r, ok := s.rasters[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRaster, key)
	}
	delete(s.rasters, key)
	s.log.Info("raster deleted", "key", key)
	if err := s.surface.RemoveLayer(r.Layer); err != nil {
		return fmt.Errorf("remove footprint %s: %w", r.Layer, err)
	}
	return nil
}
