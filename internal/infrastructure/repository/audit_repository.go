package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
)

const DefaultAuditLimit = 500

// AuditLogRepository appends audit entries per account, newest first.
type AuditLogRepository struct {
	store cache.Store
	limit int
	now   func() time.Time
}

func NewAuditLogRepository(store cache.Store, limit int) *AuditLogRepository {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return &AuditLogRepository{store: store, limit: limit, now: time.Now}
}

func logsKey(accountID string) string {
	return "logs:" + accountID
}

// AddLog records entry, filling in its id and timestamp when absent.
func (r *AuditLogRepository) AddLog(ctx context.Context, accountID string, entry assessment.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}

	key := logsKey(accountID)
	return r.store.WithLock(ctx, key, func(ctx context.Context) error {
		entries, err := r.ListLogs(ctx, accountID)
		if err != nil {
			return err
		}

		entries = append([]assessment.AuditEntry{entry}, entries...)
		if len(entries) > r.limit {
			entries = entries[:r.limit]
		}

		if err := r.store.SetJSON(ctx, key, entries, 0); err != nil {
			return fmt.Errorf("failed to save audit log: %w", err)
		}
		return nil
	})
}

func (r *AuditLogRepository) ListLogs(ctx context.Context, accountID string) ([]assessment.AuditEntry, error) {
	var entries []assessment.AuditEntry
	if err := r.store.GetJSON(ctx, logsKey(accountID), &entries); err != nil {
		var notFound cache.ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return []assessment.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("failed to load audit log: %w", err)
	}
	return entries, nil
}
