package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HealthChecker checks the health of a dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusFail HealthStatus = "fail"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       HealthStatus  `json:"status"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status      HealthStatus                 `json:"status"`
	Version     string                       `json:"version"`
	ServiceName string                       `json:"service_name"`
	Checks      map[string]HealthCheckResult `json:"checks,omitempty"`
	Uptime      float64                      `json:"uptime_seconds"`
}

// HealthService runs dependency checks for the liveness and readiness
// endpoints.
type HealthService struct {
	serviceName string
	version     string
	timeout     time.Duration
	checkers    []HealthChecker
	tracer      trace.Tracer
	startTime   time.Time
}

func NewHealthService(serviceName, version string, timeout time.Duration, checkers ...HealthChecker) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{
		serviceName: serviceName,
		version:     version,
		timeout:     timeout,
		checkers:    checkers,
		tracer:      otel.Tracer("api.ops.health"),
		startTime:   time.Now(),
	}
}

// LivenessHandler reports that the process is up
func (h *HealthService) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{
			Status:      HealthStatusPass,
			Version:     h.version,
			ServiceName: h.serviceName,
			Uptime:      time.Since(h.startTime).Seconds(),
		})
	}
}

// ReadinessHandler runs every checker and fails if any does
func (h *HealthService) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "health.readiness")
		defer span.End()

		checks := h.runChecks(ctx)

		status := HealthStatusPass
		statusCode := http.StatusOK
		for _, result := range checks {
			if result.Status == HealthStatusFail {
				status = HealthStatusFail
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:      status,
			Version:     h.version,
			ServiceName: h.serviceName,
			Checks:      checks,
			Uptime:      time.Since(h.startTime).Seconds(),
		})

		span.SetAttributes(
			attribute.String("health.status", string(status)),
			attribute.Int("health.checks_count", len(checks)),
		)
	}
}

func (h *HealthService) runChecks(ctx context.Context) map[string]HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]HealthCheckResult, len(h.checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			start := time.Now()
			result := HealthCheckResult{Status: HealthStatusPass}
			if err := c.Check(ctx); err != nil {
				result.Status = HealthStatusFail
				result.Error = err.Error()
			}
			result.ResponseTime = time.Since(start)

			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	return results
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/health+json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
