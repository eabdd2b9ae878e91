package repository

import (
	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
)

// Repositories holds all repository instances
type Repositories struct {
	Reports  *ReportRepository
	Audit    *AuditLogRepository
	Settings *SettingsRepository
}

// NewRepositories creates a new repository collection over one store
func NewRepositories(store cache.Store, historyLimit, auditLimit int, logger *zap.Logger) *Repositories {
	return &Repositories{
		Reports:  NewReportRepository(store, historyLimit, logger),
		Audit:    NewAuditLogRepository(store, auditLimit),
		Settings: NewSettingsRepository(store),
	}
}
