package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
)

// DefaultHistoryLimit is the number of reports kept per account.
const DefaultHistoryLimit = 50

// ReportRepository keeps a capped, newest-first report history per account.
type ReportRepository struct {
	store  cache.Store
	limit  int
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(store cache.Store, limit int, logger *zap.Logger) *ReportRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &ReportRepository{store: store, limit: limit, logger: logger}
}

func reportsKey(accountID string) string {
	return "reports:" + accountID
}

// AddReport prepends report and evicts the oldest entries beyond the cap.
func (r *ReportRepository) AddReport(ctx context.Context, report *assessment.Report) error {
	if report == nil || report.ID == "" {
		return domainerrors.NewValidationError("INVALID_REPORT", "report id is required")
	}

	key := reportsKey(report.AccountID)
	return r.store.WithLock(ctx, key, func(ctx context.Context) error {
		history, err := r.load(ctx, key)
		if err != nil {
			return err
		}

		history = append([]*assessment.Report{report}, history...)
		if len(history) > r.limit {
			evicted := len(history) - r.limit
			history = history[:r.limit]
			r.logger.Debug("report history trimmed",
				zap.String("account_id", report.AccountID),
				zap.Int("evicted", evicted))
		}

		if err := r.store.SetJSON(ctx, key, history, 0); err != nil {
			return fmt.Errorf("failed to save report history: %w", err)
		}
		return nil
	})
}

// ListReports returns the history newest first.
func (r *ReportRepository) ListReports(ctx context.Context, accountID string) ([]*assessment.Report, error) {
	return r.load(ctx, reportsKey(accountID))
}

// GetReportByID finds a report in the account history.
func (r *ReportRepository) GetReportByID(ctx context.Context, accountID, id string) (*assessment.Report, error) {
	history, err := r.load(ctx, reportsKey(accountID))
	if err != nil {
		return nil, err
	}

	for _, report := range history {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, domainerrors.NewNotFoundError("report")
}

// RemoveReport deletes a report from the account history.
func (r *ReportRepository) RemoveReport(ctx context.Context, accountID, id string) error {
	key := reportsKey(accountID)
	return r.store.WithLock(ctx, key, func(ctx context.Context) error {
		history, err := r.load(ctx, key)
		if err != nil {
			return err
		}

		kept := history[:0]
		for _, report := range history {
			if report.ID != id {
				kept = append(kept, report)
			}
		}
		if len(kept) == len(history) {
			return domainerrors.NewNotFoundError("report")
		}

		if err := r.store.SetJSON(ctx, key, kept, 0); err != nil {
			return fmt.Errorf("failed to save report history: %w", err)
		}
		return nil
	})
}

func (r *ReportRepository) load(ctx context.Context, key string) ([]*assessment.Report, error) {
	var history []*assessment.Report
	if err := r.store.GetJSON(ctx, key, &history); err != nil {
		var notFound cache.ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return []*assessment.Report{}, nil
		}
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}
	return history, nil
}
