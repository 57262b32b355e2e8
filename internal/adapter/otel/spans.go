package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "espresso"

// StartSessionSpan starts a span for one orchestration run.
func StartSessionSpan(ctx context.Context, correlationID, feedbackID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session",
		trace.WithAttributes(
			attribute.String("session.correlation_id", correlationID),
			attribute.String("feedback.id", feedbackID),
		),
	)
}

// StartCriterionSpan starts a span for one criterion's generation call.
func StartCriterionSpan(ctx context.Context, criterionID string, rank int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "criterion",
		trace.WithAttributes(
			attribute.String("criterion.id", criterionID),
			attribute.Int("criterion.rank", rank),
		),
	)
}
