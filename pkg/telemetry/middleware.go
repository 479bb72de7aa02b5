package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error type classification constants per OTel semantic conventions.
const (
	ErrTypeValidation = "validation"
	ErrTypeInternal   = "internal"
)

// RecordSpanError records an error on a span with structured classification
// attributes (error.type).
func RecordSpanError(span trace.Span, err error, errType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", errType))
}
