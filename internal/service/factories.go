package service

import (
	"go.uber.org/zap"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/llm"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/repository"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/zerotrust"
	"github.com/shadowscope/shadow-ai-assessor/internal/metrics"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/engine"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
)

// Services holds the wired application services
type Services struct {
	Repositories *repository.Repositories
	Tools        *tools.Dispatcher
	Narrative    *narrative.Orchestrator
	Engine       engine.Service
}

// NewServices wires every service on top of store.
func NewServices(cfg *config.Config, store cache.Store, logger *zap.Logger, m *metrics.Registry) *Services {
	repos := repository.NewRepositories(store, cfg.Assessment.HistoryLimit, cfg.Assessment.AuditLimit, logger)

	registry := tools.NewRegistry(engine.NewHistoryTools(repos.Reports))
	dispatcher := tools.NewDispatcher(registry, logger.Named("tools"), m,
		tools.NewWeatherTool(),
		tools.NewWebTool(cfg.Tools),
	)

	var provider narrative.ChatProvider
	if cfg.LLM.APIKey != "" {
		provider = llm.NewClient(cfg.LLM, logger.Named("llm"))
	} else {
		logger.Warn("llm api key not configured, insights will use the fallback narrative")
	}
	orchestrator := narrative.NewOrchestrator(provider, dispatcher, cfg.LLM, logger.Named("narrative"), m)

	source := zerotrust.NewClient(cfg.ZeroTrust, logger.Named("zerotrust"))

	return &Services{
		Repositories: repos,
		Tools:        dispatcher,
		Narrative:    orchestrator,
		Engine: engine.NewService(
			source,
			orchestrator,
			repos.Reports,
			repos.Audit,
			repos.Settings,
			engine.ConfigFrom(cfg),
			logger.Named("engine"),
			m,
		),
	}
}
