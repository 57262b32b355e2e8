package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "espresso"

// Metrics holds all espresso metric instruments.
type Metrics struct {
	SessionsStarted   metric.Int64Counter
	SessionsCompleted metric.Int64Counter
	SessionsFailed    metric.Int64Counter
	ProviderCalls     metric.Int64Counter
	FallbackAttempts  metric.Int64Counter
	TokensUsed        metric.Int64Counter
	SessionDuration   metric.Float64Histogram
	CriterionDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsStarted, err = meter.Int64Counter("espresso.sessions.started",
		metric.WithDescription("Number of feedback sessions started"))
	if err != nil {
		return nil, err
	}

	m.SessionsCompleted, err = meter.Int64Counter("espresso.sessions.completed",
		metric.WithDescription("Number of feedback sessions completed"))
	if err != nil {
		return nil, err
	}

	m.SessionsFailed, err = meter.Int64Counter("espresso.sessions.failed",
		metric.WithDescription("Number of feedback sessions that produced no result"))
	if err != nil {
		return nil, err
	}

	m.ProviderCalls, err = meter.Int64Counter("espresso.provider.calls",
		metric.WithDescription("Number of LLM provider calls"))
	if err != nil {
		return nil, err
	}

	m.FallbackAttempts, err = meter.Int64Counter("espresso.provider.fallbacks",
		metric.WithDescription("Number of calls served by a fallback endpoint"))
	if err != nil {
		return nil, err
	}

	m.TokensUsed, err = meter.Int64Counter("espresso.tokens.used",
		metric.WithDescription("Tokens consumed across provider calls"))
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Float64Histogram("espresso.session.duration_seconds",
		metric.WithDescription("End-to-end session duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CriterionDuration, err = meter.Float64Histogram("espresso.criterion.duration_seconds",
		metric.WithDescription("Per-criterion generation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
