package analysis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"agenttrace-backend/internal/llm"
	"agenttrace-backend/internal/shared/metrics"
	"agenttrace-backend/internal/shared/telemetry"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 30 * time.Second

var tracer = otel.Tracer("agenttrace-backend/internal/analysis")

// Gate decides whether an analysis is served from cache, generated by the
// provider, or replaced by a fallback.
type Gate struct {
	Provider     llm.Provider
	Cache        *Cache
	Model        string
	Enabled      bool
	CacheEnabled bool
	// Configured is false when the provider is a local stand-in.
	Configured bool
	Timeout    time.Duration
	Now        func() time.Time

	group singleflight.Group
}

// NewGate returns an enabled, caching Gate over provider.
func NewGate(provider llm.Provider, model string) *Gate {
	return &Gate{
		Provider:     provider,
		Cache:        NewCache(),
		Model:        model,
		Enabled:      true,
		CacheEnabled: true,
		Configured:   provider != nil,
		Timeout:      DefaultTimeout,
		Now:          time.Now,
	}
}

// IsEnabled reports whether Analyze can reach a provider.
func (g *Gate) IsEnabled() bool {
	return g != nil && g.Enabled && g.Provider != nil
}

// Status reports availability for the status endpoint.
func (g *Gate) Status() Status {
	if g == nil {
		return Status{}
	}
	st := Status{Enabled: g.IsEnabled(), Configured: g.Configured}
	if st.Enabled {
		model := g.Model
		st.Model = &model
	}
	return st
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Gate) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return DefaultTimeout
}

// Lookup returns a cached analysis without calling the provider.
func (g *Gate) Lookup(req Request) (Result, bool) {
	if !g.IsEnabled() || !g.CacheEnabled || g.Cache == nil {
		return Result{}, false
	}
	res, ok := g.Cache.Get(Fingerprint(req.Error, req.Step, req.Trace))
	if !ok {
		return Result{}, false
	}
	res.Cached = true
	return res, true
}

// Analyze returns an analysis for req. Provider replies that cannot be parsed
// come back as a fallback Result rather than an error. Concurrent misses for
// the same fingerprint share one provider call. The shared call is detached
// from any single caller's cancellation and bounded by the gate timeout; a
// caller whose own context ends stops waiting without failing the others.
func (g *Gate) Analyze(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "analysis.Analyze")
	defer span.End()

	if !g.IsEnabled() {
		metrics.IncAnalysisOutcome(metrics.OutcomeDisabled)
		span.SetAttributes(attribute.String("analysis.outcome", metrics.OutcomeDisabled))
		return Result{}, ErrFeatureDisabled
	}

	key := Fingerprint(req.Error, req.Step, req.Trace)
	span.SetAttributes(
		attribute.String("analysis.fingerprint", string(key)),
		attribute.Bool("analysis.force_refresh", req.ForceRefresh),
		attribute.String("trace.id", req.Trace.TraceID),
	)

	if !req.ForceRefresh {
		if res, ok := g.Lookup(req); ok {
			metrics.IncAnalysisOutcome(metrics.OutcomeCacheHit)
			span.SetAttributes(attribute.String("analysis.outcome", metrics.OutcomeCacheHit))
			telemetry.Info("analysis.cache_hit", map[string]any{
				"trace_id":    req.Trace.TraceID,
				"fingerprint": string(key),
			})
			return res, nil
		}
	}

	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(string(key), func() (any, error) {
		return g.generate(detached, key, req)
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return Result{}, ctx.Err()
	case r = <-ch:
	}
	v, err, shared := r.Val, r.Err, r.Shared
	span.SetAttributes(attribute.Bool("analysis.shared_call", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return Result{}, err
	}
	res := v.(Result)
	if res.FallbackReason != FallbackNone {
		span.SetAttributes(attribute.String("analysis.outcome", metrics.OutcomeFallback))
	} else {
		span.SetAttributes(attribute.String("analysis.outcome", metrics.OutcomeGenerated))
	}
	return res, nil
}

func (g *Gate) generate(ctx context.Context, key Key, req Request) (Result, error) {
	prompt := buildPrompt(req)
	tokens := llm.CountTokens(g.Model, prompt.System) + llm.CountTokens(g.Model, prompt.User)
	metrics.ObservePromptTokens(tokens)
	telemetry.Info("analysis.provider_call", map[string]any{
		"trace_id":      req.Trace.TraceID,
		"model":         g.Model,
		"prompt_tokens": tokens,
		"force_refresh": req.ForceRefresh,
	})

	ctx, span := tracer.Start(ctx, "analysis.provider",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", g.Model),
			attribute.Int("llm.prompt_tokens", tokens),
		),
	)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	start := time.Now()
	text, err := g.Provider.Complete(callCtx, prompt)
	metrics.ObserveProviderSeconds(time.Since(start).Seconds())
	if err != nil {
		metrics.IncAnalysisOutcome(metrics.OutcomeProviderError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider error")
		fields := map[string]any{
			"trace_id": req.Trace.TraceID,
			"model":    g.Model,
			"error":    err.Error(),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields["otel_trace_id"] = sc.TraceID().String()
		}
		telemetry.Error("analysis.provider_failed", fields)
		return Result{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	parsed := parseResponse(text)
	res := Result{
		Summary:        parsed.fields.Summary,
		RootCause:      parsed.fields.RootCause,
		SuggestedFix:   parsed.fields.SuggestedFix,
		ModelUsed:      g.Model,
		CreatedAt:      g.now(),
		FallbackReason: parsed.reason,
	}

	if parsed.reason != FallbackNone {
		metrics.IncAnalysisOutcome(metrics.OutcomeFallback)
		telemetry.Warn("analysis.fallback", map[string]any{
			"trace_id": req.Trace.TraceID,
			"reason":   string(parsed.reason),
		})
		return res, nil
	}

	if g.CacheEnabled && g.Cache != nil {
		g.Cache.Put(key, res)
	}
	metrics.IncAnalysisOutcome(metrics.OutcomeGenerated)
	return res, nil
}
