package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
)

// Route identifies which endpoint served an attempt.
type Route string

const (
	RoutePrimary  Route = "primary"
	RouteFallback Route = "fallback"
)

// Result is the successful outcome of one failover-wrapped call.
type Result struct {
	Text  string
	Usage llm.Usage
	Route Route
}

// Invoker wraps one adapter call with the primary/fallback retry policy.
// It owns no state across calls; each Do starts from Idle, so fallback
// routing is evaluated independently per criterion call.
type Invoker struct {
	breakers *BreakerSet // nil disables circuit breaking
}

// NewInvoker creates an Invoker. breakers may be nil.
func NewInvoker(breakers *BreakerSet) *Invoker {
	return &Invoker{breakers: breakers}
}

// Do runs one generation against p, attempting the primary endpoint
// first and, when the failure kind and configuration permit, the
// fallback. onDelta is called for every text fragment as it arrives;
// once any fragment has been forwarded the call is pinned to its
// endpoint, because emitted text cannot be retracted.
//
// Failures are returned as *llm.ProviderError carrying the kind and
// the endpoint that produced them, except when the parent context ends:
// then the context error is returned as-is so the caller can tell
// cancellation apart from backend failure.
func (iv *Invoker) Do(
	ctx context.Context,
	p *provider.Provider,
	gen llmbackend.Generator,
	req llm.Request,
	onDelta func(text string) error,
) (*Result, error) {
	res, forwarded, perr := iv.attempt(ctx, RoutePrimary, p.Primary(), gen, req, onDelta)
	if perr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var pe *llm.ProviderError
	if !errors.As(perr, &pe) {
		// Not a backend fault (delta delivery failed); nothing to retry.
		return nil, perr
	}

	kind := pe.Kind
	if !iv.fallbackAllowed(p, kind, forwarded) {
		slog.Warn("provider call failed",
			"provider", p.Name, "model", req.Model, "kind", kind, "route", RoutePrimary)
		return nil, perr
	}

	slog.Info("primary endpoint failed, attempting fallback",
		"provider", p.Name, "model", req.Model, "kind", kind)

	res, _, ferr := iv.attempt(ctx, RouteFallback, p.Fallback(), gen, req, onDelta)
	if ferr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Warn("fallback endpoint failed",
		"provider", p.Name, "model", req.Model, "kind", llm.KindOf(ferr))
	return nil, ferr
}

// fallbackAllowed applies the transition rule from AttemptingPrimary to
// AttemptingFallback: a distinct enabled fallback, a retryable error
// kind, no text already forwarded, and for auth failures a credential
// that actually differs from the primary's.
func (iv *Invoker) fallbackAllowed(p *provider.Provider, kind llm.ErrorKind, forwarded bool) bool {
	if forwarded {
		return false
	}
	if !p.FallbackEligible() {
		return false
	}
	if !kind.Retryable() {
		return false
	}
	if kind == llm.KindAuthFailure && p.FallbackCredential == p.Credential {
		return false
	}
	return true
}

// attempt runs a single bounded call against one endpoint. forwarded
// reports whether any text fragment reached onDelta.
func (iv *Invoker) attempt(
	ctx context.Context,
	route Route,
	ep llm.Endpoint,
	gen llmbackend.Generator,
	req llm.Request,
	onDelta func(text string) error,
) (res *Result, forwarded bool, err error) {
	var breaker *Breaker
	if iv.breakers != nil {
		breaker = iv.breakers.For(ep.URL)
		if !breaker.Allow() {
			return nil, false, llm.NewProviderError(llm.KindTransport, ep.URL, ErrCircuitOpen)
		}
	}

	actx := ctx
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	res, forwarded, err = iv.consume(actx, route, ep, gen, req, onDelta)

	if breaker != nil {
		switch {
		case err == nil:
			breaker.RecordSuccess()
		case ctx.Err() != nil:
			// Parent cancellation says nothing about endpoint health.
		default:
			// Only faults of the endpoint count toward its health.
			// Request-property kinds (unknown model, bad request,
			// malformed response) must not open the breaker: an open
			// breaker reads as a transport failure, which would route
			// non-retryable errors to the fallback.
			var pe *llm.ProviderError
			if errors.As(err, &pe) && pe.Kind.Retryable() {
				breaker.RecordFailure()
			}
		}
	}
	return res, forwarded, err
}

func (iv *Invoker) consume(
	ctx context.Context,
	route Route,
	ep llm.Endpoint,
	gen llmbackend.Generator,
	req llm.Request,
	onDelta func(text string) error,
) (*Result, bool, error) {
	ch, err := gen.Generate(ctx, ep, req)
	if err != nil {
		return nil, false, iv.classify(ctx, ep, err)
	}

	var (
		text      strings.Builder
		usage     llm.Usage
		forwarded bool
	)
	for d := range ch {
		if d.Err != nil {
			return nil, forwarded, iv.classify(ctx, ep, d.Err)
		}
		if d.Text != "" {
			if onDelta != nil {
				if err := onDelta(d.Text); err != nil {
					return nil, forwarded, fmt.Errorf("deliver delta: %w", err)
				}
			}
			forwarded = true
			text.WriteString(d.Text)
		}
		if d.Done {
			if d.Usage != nil {
				usage = *d.Usage
			}
			return &Result{Text: text.String(), Usage: usage, Route: route}, forwarded, nil
		}
	}

	// Channel closed without a terminal delta: the adapter bailed out on
	// context cancellation.
	if ctx.Err() != nil {
		return nil, forwarded, iv.classify(ctx, ep, ctx.Err())
	}
	return nil, forwarded, llm.NewProviderError(llm.KindMalformed, ep.URL,
		errors.New("stream closed without completion"))
}

// classify wraps err as a ProviderError, mapping an attempt deadline to
// Timeout. A typed error from the adapter passes through unchanged.
func (iv *Invoker) classify(ctx context.Context, ep llm.Endpoint, err error) error {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llm.NewProviderError(llm.KindTimeout, ep.URL, err)
	}
	return llm.NewProviderError(llm.KindTransport, ep.URL, err)
}
