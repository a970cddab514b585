package submission

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackmapper/editor/internal/submission"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
