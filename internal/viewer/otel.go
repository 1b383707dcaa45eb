package viewer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wim-maps/engine/internal/viewer"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
