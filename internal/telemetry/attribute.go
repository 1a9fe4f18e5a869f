package telemetry

import (
	"minhton/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// IdAttributes renders a participant's UUID as a set of span/resource
// attributes under prefix, for use as semconv-style resource tags.
func IdAttributes(prefix string, id domain.UUID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(prefix, id.String()),
	}
}
