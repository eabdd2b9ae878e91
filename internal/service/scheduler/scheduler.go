package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
)

// Runner runs one assessment for a stored account.
type Runner interface {
	RunForAccount(ctx context.Context, accountID string, opts ...narrative.Option) (*assessment.Report, error)
}

// AccountLister lists accounts with stored settings.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]string, error)
}

// Metrics are the Prometheus collectors exported on the ops endpoint.
type Metrics struct {
	runs        *prometheus.CounterVec
	lastRun     prometheus.Gauge
	lastScore   *prometheus.GaugeVec
	cycleLength prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shadowai",
				Subsystem: "scheduler",
				Name:      "runs_total",
				Help:      "Scheduled assessment runs by outcome",
			},
			[]string{"status"},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "shadowai",
				Subsystem: "scheduler",
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time the last scheduling cycle finished",
			},
		),
		lastScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "shadowai",
				Subsystem: "assessment",
				Name:      "health_score",
				Help:      "Health score of the latest scheduled assessment",
			},
			[]string{"account_id"},
		),
		cycleLength: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "shadowai",
				Subsystem: "scheduler",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of one scheduling cycle",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
	}
}

// CycleResult summarizes one pass over all accounts.
type CycleResult struct {
	Succeeded []string
	Failed    map[string]error
}

// Scheduler runs assessments for every known account on a fixed interval.
// Accounts come from the static list plus the settings store.
type Scheduler struct {
	runner   Runner
	lister   AccountLister
	static   []string
	interval time.Duration
	metrics  *Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

func New(runner Runner, lister AccountLister, static []string, interval time.Duration, m *Metrics, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		lister:   lister,
		static:   static,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

// Run executes a cycle immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce assesses each account sequentially. A cycle that starts while
// another is still running is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) CycleResult {
	result := CycleResult{Failed: make(map[string]error)}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous cycle still running, skipping")
		return result
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	for _, accountID := range s.accounts(ctx) {
		if ctx.Err() != nil {
			break
		}

		report, err := s.runner.RunForAccount(ctx, accountID)
		if err != nil {
			result.Failed[accountID] = err
			s.recordRun("failure")
			level := zap.ErrorLevel
			if domainerrors.IsType(err, domainerrors.ErrorTypeMissingCredentials) {
				level = zap.WarnLevel
			}
			s.logger.Log(level, "scheduled assessment failed",
				zap.String("account_id", accountID),
				zap.Error(err))
			continue
		}

		result.Succeeded = append(result.Succeeded, accountID)
		s.recordRun("success")
		if s.metrics != nil {
			s.metrics.lastScore.WithLabelValues(accountID).Set(float64(report.Score))
		}
	}

	if s.metrics != nil {
		s.metrics.cycleLength.Observe(time.Since(start).Seconds())
		s.metrics.lastRun.SetToCurrentTime()
	}
	s.logger.Info("scheduling cycle finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", time.Since(start)))
	return result
}

func (s *Scheduler) recordRun(status string) {
	if s.metrics != nil {
		s.metrics.runs.WithLabelValues(status).Inc()
	}
}

// accounts merges the static list with stored accounts, sorted and
// deduplicated.
func (s *Scheduler) accounts(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range s.static {
		add(id)
	}
	if s.lister != nil {
		stored, err := s.lister.ListAccounts(ctx)
		if err != nil {
			s.logger.Warn("failed to list stored accounts", zap.Error(err))
		}
		for _, id := range stored {
			add(id)
		}
	}

	sort.Strings(out)
	return out
}
