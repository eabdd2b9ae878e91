package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
)

const (
	RecentAssessmentsTool = "recent_assessments"

	defaultRecentLimit = 5
	maxRecentLimit     = 20
)

type accountKey struct{}

// WithAccount binds the account an exchange runs for. HistoryTools only
// reads history for the bound account.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountFromContext returns the account bound by WithAccount.
func AccountFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountKey{}).(string)
	return accountID, ok && accountID != ""
}

// HistoryTools exposes the stored report history to the model as the
// recent_assessments tool.
type HistoryTools struct {
	reports ReportRepository
}

var _ tools.Provider = (*HistoryTools)(nil)

func NewHistoryTools(reports ReportRepository) *HistoryTools {
	return &HistoryTools{reports: reports}
}

func (h *HistoryTools) Definitions(context.Context) ([]tools.Definition, error) {
	return []tools.Definition{{
		Name:        RecentAssessmentsTool,
		Description: "List the most recent assessments for the account being assessed with their score and risk level, newest first.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Number of assessments to return, at most %d", maxRecentLimit),
				},
			},
		},
	}}, nil
}

func (h *HistoryTools) Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	if name != RecentAssessmentsTool {
		return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	}

	// args never select the account
	accountID, ok := AccountFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no account bound to this exchange")
	}

	limit := defaultRecentLimit
	if v, ok := args["limit"].(float64); ok && v >= 1 {
		limit = int(math.Min(v, maxRecentLimit))
	}

	history, err := h.reports.ListReports(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(history) > limit {
		history = history[:limit]
	}

	rows := make([]map[string]interface{}, 0, len(history))
	for _, report := range history {
		rows = append(rows, map[string]interface{}{
			"id":              report.ID,
			"date":            report.Date,
			"score":           report.Score,
			"riskLevel":       report.RiskLevel,
			"shadowUsageRate": report.Summary.ShadowUsageRate,
			"shadowAIApps":    report.Summary.ShadowAIApps,
		})
	}

	return map[string]interface{}{
		"accountId":   accountID,
		"assessments": rows,
	}, nil
}
