package engine

import (
	"context"
	"time"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
)

// Service defines the assessment engine interface
type Service interface {
	// RunAssessment pulls platform data for settings, scores it and persists the report
	RunAssessment(ctx context.Context, settings assessment.Settings, opts ...narrative.Option) (*assessment.Report, error)
	// RunForAccount loads stored settings for accountID and runs an assessment
	RunForAccount(ctx context.Context, accountID string, opts ...narrative.Option) (*assessment.Report, error)
	// ListReports returns the report history newest first
	ListReports(ctx context.Context, accountID string) ([]*assessment.Report, error)
	// GetReport returns a single report
	GetReport(ctx context.Context, accountID, reportID string) (*assessment.Report, error)
	// DeleteReport removes a report and records an audit entry
	DeleteReport(ctx context.Context, accountID, reportID, user string) error
}

// EventSource reads catalog, review and event data from the identity platform
type EventSource interface {
	AppTypes(ctx context.Context, settings assessment.Settings) ([]assessment.AppCatalogEntry, error)
	ReviewStatus(ctx context.Context, settings assessment.Settings) (assessment.ReviewStatusSet, error)
	AccessEvents(ctx context.Context, settings assessment.Settings, since time.Time) ([]assessment.AccessEvent, error)
}

// Narrator produces the insights narrative
type Narrator interface {
	GenerateInsights(ctx context.Context, prompt string, history []narrative.Message, opts ...narrative.Option) *narrative.Result
}

// ReportRepository stores the capped report history per account
type ReportRepository interface {
	AddReport(ctx context.Context, report *assessment.Report) error
	ListReports(ctx context.Context, accountID string) ([]*assessment.Report, error)
	GetReportByID(ctx context.Context, accountID, id string) (*assessment.Report, error)
	RemoveReport(ctx context.Context, accountID, id string) error
}

// AuditRepository appends audit entries per account
type AuditRepository interface {
	AddLog(ctx context.Context, accountID string, entry assessment.AuditEntry) error
}

// SettingsRepository reads stored account credentials
type SettingsRepository interface {
	GetSettings(ctx context.Context, accountID string) (*assessment.Settings, error)
}
