package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogHandler returns a JSON handler that ships records to a Graylog
// GELF UDP input at addr. The returned writer must be closed on shutdown.
func NewGraylogHandler(addr, level string) (slog.Handler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create graylog writer: %w", err)
	}
	w.Facility = "trackmapper"
	return slog.NewJSONHandler(w, handlerOptions(level)), w, nil
}
