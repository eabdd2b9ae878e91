package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
)

const settingsPrefix = "settings:"

// SettingsRepository stores identity-platform credentials keyed by account.
type SettingsRepository struct {
	store cache.Store
}

func NewSettingsRepository(store cache.Store) *SettingsRepository {
	return &SettingsRepository{store: store}
}

func (r *SettingsRepository) GetSettings(ctx context.Context, accountID string) (*assessment.Settings, error) {
	var settings assessment.Settings
	if err := r.store.GetJSON(ctx, settingsPrefix+accountID, &settings); err != nil {
		var notFound cache.ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return nil, domainerrors.NewNotFoundError("settings")
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepository) SaveSettings(ctx context.Context, settings assessment.Settings) error {
	if settings.AccountID == "" {
		return domainerrors.NewValidationError("INVALID_SETTINGS", "account id is required")
	}
	if err := r.store.SetJSON(ctx, settingsPrefix+settings.AccountID, settings, 0); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ListAccounts returns every account with stored settings.
func (r *SettingsRepository) ListAccounts(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, settingsPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	accounts := make([]string, 0, len(keys))
	for _, key := range keys {
		accounts = append(accounts, strings.TrimPrefix(key, settingsPrefix))
	}
	return accounts, nil
}
