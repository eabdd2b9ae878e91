package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the assessment domain metrics. A nil *Registry is valid
// and records nothing.
type Registry struct {
	meter metric.Meter

	// Assessment metrics
	AssessmentDuration metric.Float64Histogram
	AssessmentCounter  metric.Int64Counter
	HealthScore        metric.Int64ObservableGauge

	// Data source metrics
	UpstreamFailureCounter metric.Int64Counter
	EventsProcessed        metric.Int64Counter

	// Narrative metrics
	NarrativeDuration metric.Float64Histogram
	FallbackCounter   metric.Int64Counter
	ToolCallCounter   metric.Int64Counter

	mu         sync.RWMutex
	lastScores map[string]int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{
		meter:      meter,
		lastScores: make(map[string]int64),
	}

	if err := r.initAssessmentMetrics(); err != nil {
		return nil, err
	}

	if err := r.initNarrativeMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initAssessmentMetrics() error {
	var err error

	r.AssessmentDuration, err = r.meter.Float64Histogram(
		"shadowai.assessment.duration",
		metric.WithDescription("Duration of a full assessment run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	r.AssessmentCounter, err = r.meter.Int64Counter(
		"shadowai.assessment.runs_total",
		metric.WithDescription("Total number of assessment runs by outcome"),
	)
	if err != nil {
		return err
	}

	r.HealthScore, err = r.meter.Int64ObservableGauge(
		"shadowai.assessment.health_score",
		metric.WithDescription("Most recent health score per account"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			for account, score := range r.lastScores {
				o.Observe(score, metric.WithAttributes(attribute.String("account_id", account)))
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.UpstreamFailureCounter, err = r.meter.Int64Counter(
		"shadowai.source.failures_total",
		metric.WithDescription("Identity platform fetches that degraded to empty results"),
	)
	if err != nil {
		return err
	}

	r.EventsProcessed, err = r.meter.Int64Counter(
		"shadowai.source.events_total",
		metric.WithDescription("Access events inspected by the aggregation pass"),
	)
	return err
}

func (r *Registry) initNarrativeMetrics() error {
	var err error

	r.NarrativeDuration, err = r.meter.Float64Histogram(
		"shadowai.narrative.duration",
		metric.WithDescription("Duration of narrative generation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	r.FallbackCounter, err = r.meter.Int64Counter(
		"shadowai.narrative.fallbacks_total",
		metric.WithDescription("Narrative generations that returned the fallback payload"),
	)
	if err != nil {
		return err
	}

	r.ToolCallCounter, err = r.meter.Int64Counter(
		"shadowai.narrative.tool_calls_total",
		metric.WithDescription("Tool calls executed on behalf of the model"),
	)
	return err
}

// RecordAssessment records an assessment run outcome
func (r *Registry) RecordAssessment(ctx context.Context, accountID string, duration time.Duration, score int, success bool) {
	if r == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	r.AssessmentDuration.Record(ctx, duration.Seconds(), attrs)
	r.AssessmentCounter.Add(ctx, 1, attrs)

	if success {
		r.mu.Lock()
		r.lastScores[accountID] = int64(score)
		r.mu.Unlock()
	}
}

// LastScore returns the most recent score recorded for accountID.
func (r *Registry) LastScore(accountID string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	score, ok := r.lastScores[accountID]
	return score, ok
}

func (r *Registry) RecordUpstreamFailure(ctx context.Context, source string) {
	if r == nil {
		return
	}
	r.UpstreamFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (r *Registry) RecordEventsProcessed(ctx context.Context, total, matched int) {
	if r == nil {
		return
	}
	r.EventsProcessed.Add(ctx, int64(matched), metric.WithAttributes(attribute.Bool("ai", true)))
	r.EventsProcessed.Add(ctx, int64(total-matched), metric.WithAttributes(attribute.Bool("ai", false)))
}

func (r *Registry) RecordNarrative(ctx context.Context, duration time.Duration, fallback bool) {
	if r == nil {
		return
	}
	r.NarrativeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("fallback", fallback)))
	if fallback {
		r.FallbackCounter.Add(ctx, 1)
	}
}

func (r *Registry) RecordToolCall(ctx context.Context, tool string, success bool) {
	if r == nil {
		return
	}
	r.ToolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}
