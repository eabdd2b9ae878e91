package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/zerotrust"
	"github.com/shadowscope/shadow-ai-assessor/internal/metrics"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
)

const (
	topAppsLimit    = 5
	powerUsersLimit = 3

	ActionRunAssessment = "assessment.run"
	ActionDeleteReport  = "report.delete"
)

// Config holds the engine tunables.
type Config struct {
	LookbackDays    int
	SyntheticTrends bool
	Location        *time.Location
	AITypeID        int
	AINamePatterns  []string
}

// ConfigFrom derives the engine settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		LookbackDays:    cfg.Assessment.LookbackDays,
		SyntheticTrends: cfg.Assessment.SyntheticTrends,
		Location:        cfg.Assessment.Location(),
		AITypeID:        cfg.ZeroTrust.AITypeID,
		AINamePatterns:  cfg.Assessment.AINamePatterns,
	}
}

// service implements the Service interface
type service struct {
	source   EventSource
	narrator Narrator
	reports  ReportRepository
	audit    AuditRepository
	settings SettingsRepository
	config   Config
	matcher  *assessment.NameMatcher
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *metrics.Registry
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a new assessment engine
func NewService(
	source EventSource,
	narrator Narrator,
	reports ReportRepository,
	audit AuditRepository,
	settings SettingsRepository,
	cfg Config,
	logger *zap.Logger,
	m *metrics.Registry,
) Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AITypeID == 0 {
		cfg.AITypeID = assessment.AIApplicationTypeID
	}

	return &service{
		source:   source,
		narrator: narrator,
		reports:  reports,
		audit:    audit,
		settings: settings,
		config:   cfg,
		matcher:  assessment.NewNameMatcher(cfg.AINamePatterns),
		validate: validator.New(),
		logger:   logger,
		metrics:  m,
		tracer:   telemetry.Tracer("engine"),
		now:      time.Now,
	}
}

// RunAssessment produces and persists one report. Only missing credentials
// and pipeline failures are returned as errors; upstream and narrative
// problems degrade the report instead.
func (s *service) RunAssessment(ctx context.Context, settings assessment.Settings, opts ...narrative.Option) (report *assessment.Report, err error) {
	if verr := s.validate.Struct(settings); verr != nil {
		return nil, domainerrors.NewMissingCredentialsError("account id and api key are required").WithCause(verr)
	}

	ctx, span := s.tracer.Start(ctx, "engine.RunAssessment",
		trace.WithAttributes(attribute.String("account.id", settings.AccountID)))
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = domainerrors.NewPipelineError(fmt.Sprintf("assessment panicked: %v", r))
		}
		if err != nil {
			telemetry.RecordError(span, err)
			s.logger.Error("assessment failed",
				append(telemetry.TraceFields(ctx),
					zap.String("account_id", settings.AccountID),
					zap.Error(err))...)
			s.recordAudit(ctx, settings, ActionRunAssessment, assessment.AuditFailure, err.Error())
			s.metrics.RecordAssessment(ctx, settings.AccountID, s.now().Sub(start), 0, false)
		} else {
			span.SetAttributes(
				attribute.Int("assessment.score", report.Score),
				attribute.String("assessment.risk", string(report.RiskLevel)),
			)
			s.metrics.RecordAssessment(ctx, settings.AccountID, s.now().Sub(start), report.Score, true)
		}
		span.End()
	}()

	report = s.aggregate(ctx, settings, start)
	report.AIInsights = s.insights(ctx, settings, report, opts)

	if perr := s.reports.AddReport(ctx, report); perr != nil {
		return nil, domainerrors.NewPipelineError("failed to persist report").WithCause(perr)
	}

	s.recordAudit(ctx, settings, ActionRunAssessment, assessment.AuditSuccess,
		fmt.Sprintf("report %s: score %d, risk %s", report.ID, report.Score, report.RiskLevel))

	s.logger.Info("assessment completed",
		append(telemetry.TraceFields(ctx),
			zap.String("account_id", settings.AccountID),
			zap.String("report_id", report.ID),
			zap.Int("score", report.Score),
			zap.String("risk_level", string(report.RiskLevel)))...)
	return report, nil
}

// aggregate pulls the three data sets and computes every report figure
// except the insights.
func (s *service) aggregate(ctx context.Context, settings assessment.Settings, now time.Time) *assessment.Report {
	loc := s.config.Location

	catalog := s.fetchCatalog(ctx, settings)
	aiIDs := assessment.AIIDs(catalog, s.config.AITypeID)
	totalAI := len(aiIDs)

	review := s.fetchReviewStatus(ctx, settings)
	managed := review.ManagedIDs()
	managedAI := assessment.Intersect(aiIDs, managed)

	shadow := assessment.ShadowCount(totalAI, managedAI)
	shadowUsage := assessment.Percentage(shadow, totalAI)

	cutoff := now.AddDate(0, 0, -s.config.LookbackDays)
	events := s.fetchEvents(ctx, settings, cutoff)

	index := assessment.NewForensicsIndex()
	totals := assessment.NewAppTotals()
	tally := assessment.NewPromptTally()
	var meter assessment.ExfiltrationMeter
	matched := 0

	for _, event := range events {
		if event.Timestamp.Before(cutoff) || !s.matcher.Match(event.GatewayAppName) {
			continue
		}
		matched++

		if event.UserEmail != "" {
			index.Record(assessment.DateKey(event.Timestamp, loc), event.GatewayAppName, event.UserEmail)
			totals.Record(event.GatewayAppName, event.UserEmail)
			tally.Record(event.UserEmail)
		}
		if _, ok := managed[event.GatewayAppID]; !ok {
			meter.Add(event.BytesSent)
		}
	}
	s.metrics.RecordEventsProcessed(ctx, len(events), matched)

	dates := assessment.WindowDates(now, s.config.LookbackDays, loc)
	charts := assessment.SecurityCharts{TopApps: totals.Top(topAppsLimit)}
	if len(charts.TopApps) == 0 && matched < topAppsLimit && s.config.SyntheticTrends {
		charts.TopApps = append([]string(nil), assessment.FallbackTrendApps...)
		charts.TopAppsTrends = assessment.SyntheticTrend(dates)
		charts.Synthetic = true
	} else {
		charts.TopAppsTrends = assessment.BuildTrend(index, charts.TopApps, dates)
	}

	unapproved := assessment.CountIn(review.Unapproved, aiIDs)

	return &assessment.Report{
		ID:        newReportID(),
		AccountID: settings.AccountID,
		Date:      now.In(loc),
		Score:     assessment.HealthScore(shadowUsage, unapproved),
		RiskLevel: assessment.ClassifyRisk(shadowUsage),
		Summary: assessment.Summary{
			TotalAIApps:        totalAI,
			ManagedAIApps:      managedAI,
			ShadowAIApps:       shadow,
			UnapprovedAIApps:   unapproved,
			DataExfiltrationKB: meter.KB(),
			ShadowUsageRate:    shadowUsage,
			UnapprovedRate:     assessment.Percentage(unapproved, totalAI),
		},
		PowerUsers:     tally.Top(powerUsersLimit),
		AppLibrary:     []assessment.AppLibraryEntry{},
		SecurityCharts: charts,
	}
}

func (s *service) insights(ctx context.Context, settings assessment.Settings, report *assessment.Report, opts []narrative.Option) *assessment.AIInsights {
	if s.narrator == nil {
		return assessment.FallbackInsights()
	}

	ctx = WithAccount(ctx, settings.AccountID)
	result := s.narrator.GenerateInsights(ctx, insightsPrompt(settings.AccountID, report), nil, opts...)
	if result == nil || result.Fallback {
		return assessment.FallbackInsights()
	}

	insights, err := assessment.ParseInsights(result.Content)
	if err != nil {
		s.logger.Warn("narrative content is not valid insights, using fallback",
			append(telemetry.TraceFields(ctx), zap.Error(err))...)
		return assessment.FallbackInsights()
	}
	return insights
}

func insightsPrompt(accountID string, report *assessment.Report) string {
	return fmt.Sprintf(
		"Write an executive summary of shadow AI exposure for account %s.\n"+
			"AI applications discovered: %d\n"+
			"Shadow AI applications: %d\n"+
			"Shadow usage rate: %.1f%%\n"+
			"Unapproved AI applications in use: %d\n"+
			"Give three to five recommendations.",
		accountID,
		report.Summary.TotalAIApps,
		report.Summary.ShadowAIApps,
		report.Summary.ShadowUsageRate,
		report.Summary.UnapprovedAIApps,
	)
}

func (s *service) fetchCatalog(ctx context.Context, settings assessment.Settings) []assessment.AppCatalogEntry {
	catalog, err := s.source.AppTypes(ctx, settings)
	if err != nil {
		s.upstreamFailed(ctx, zerotrust.SourceAppTypes, err)
		return nil
	}
	return catalog
}

func (s *service) fetchReviewStatus(ctx context.Context, settings assessment.Settings) assessment.ReviewStatusSet {
	review, err := s.source.ReviewStatus(ctx, settings)
	if err != nil {
		s.upstreamFailed(ctx, zerotrust.SourceReviewStatus, err)
		return assessment.ReviewStatusSet{}
	}
	return review
}

func (s *service) fetchEvents(ctx context.Context, settings assessment.Settings, since time.Time) []assessment.AccessEvent {
	events, err := s.source.AccessEvents(ctx, settings, since)
	if err != nil {
		s.upstreamFailed(ctx, zerotrust.SourceAccessEvents, err)
		return nil
	}
	return events
}

func (s *service) upstreamFailed(ctx context.Context, source string, err error) {
	s.logger.Warn("upstream fetch failed, continuing with empty data",
		append(telemetry.TraceFields(ctx),
			zap.String("source", source),
			zap.Error(err))...)
	s.metrics.RecordUpstreamFailure(ctx, source)
}

// RunForAccount loads the stored settings for accountID and runs an assessment.
func (s *service) RunForAccount(ctx context.Context, accountID string, opts ...narrative.Option) (*assessment.Report, error) {
	if s.settings == nil {
		return nil, domainerrors.NewMissingCredentialsError("no settings store configured")
	}

	settings, err := s.settings.GetSettings(ctx, accountID)
	if err != nil {
		if domainerrors.IsType(err, domainerrors.ErrorTypeNotFound) {
			return nil, domainerrors.NewMissingCredentialsError("no credentials stored for account " + accountID)
		}
		return nil, domainerrors.NewPipelineError("failed to load settings").WithCause(err)
	}
	return s.RunAssessment(ctx, *settings, opts...)
}

func (s *service) ListReports(ctx context.Context, accountID string) ([]*assessment.Report, error) {
	return s.reports.ListReports(ctx, accountID)
}

func (s *service) GetReport(ctx context.Context, accountID, reportID string) (*assessment.Report, error) {
	return s.reports.GetReportByID(ctx, accountID, reportID)
}

func (s *service) DeleteReport(ctx context.Context, accountID, reportID, user string) error {
	if err := s.reports.RemoveReport(ctx, accountID, reportID); err != nil {
		return err
	}

	s.recordAudit(ctx, assessment.Settings{AccountID: accountID, Email: user},
		ActionDeleteReport, assessment.AuditSuccess, "deleted report "+reportID)
	return nil
}

// recordAudit appends an audit entry. Audit failures are logged only.
func (s *service) recordAudit(ctx context.Context, settings assessment.Settings, action string, status assessment.AuditStatus, description string) {
	if s.audit == nil || settings.AccountID == "" {
		return
	}

	user := settings.Email
	if user == "" {
		user = settings.AccountID
	}

	entry := assessment.AuditEntry{
		Timestamp:   s.now().UTC(),
		Action:      action,
		User:        user,
		Status:      status,
		Description: description,
	}
	if err := s.audit.AddLog(ctx, settings.AccountID, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.Error(err))
	}
}

// newReportID returns a time-ordered unique id.
func newReportID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
