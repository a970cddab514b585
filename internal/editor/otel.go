package editor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackmapper/editor/internal/editor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
