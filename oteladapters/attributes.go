package oteladapters

import "go.opentelemetry.io/otel/attribute"

// otelAttributes converts a label map into OpenTelemetry string attributes.
func otelAttributes(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}
