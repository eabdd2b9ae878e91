package assessment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackInsights is substituted whenever narrative generation fails.
func FallbackInsights() *AIInsights {
	return &AIInsights{
		Summary: "Automated narrative analysis is unavailable. The figures in this report were computed directly from gateway telemetry and remain accurate.",
		Recommendations: []Recommendation{
			{
				Title:       "Review unmanaged AI applications",
				Description: "Identify AI applications without a review decision and approve, restrict, or block each of them.",
				Type:        RecommendationCritical,
			},
			{
				Title:       "Publish an AI acceptable-use policy",
				Description: "Define which AI services may process company data and communicate the policy to all employees.",
				Type:        RecommendationPolicy,
			},
			{
				Title:       "Consolidate on sanctioned AI tools",
				Description: "Steer heavy users toward approved enterprise AI offerings to reduce data exposure and license sprawl.",
				Type:        RecommendationOptimization,
			},
		},
	}
}

// ParseInsights decodes model output into AIInsights. Markdown code
// fences around the JSON are ignored.
func ParseInsights(content string) (*AIInsights, error) {
	body := stripFences(content)
	if body == "" {
		return nil, fmt.Errorf("empty insights content")
	}

	var insights AIInsights
	if err := json.Unmarshal([]byte(body), &insights); err != nil {
		return nil, fmt.Errorf("decoding insights: %w", err)
	}
	if insights.Summary == "" && len(insights.Recommendations) == 0 {
		return nil, fmt.Errorf("insights missing summary and recommendations")
	}

	for i, rec := range insights.Recommendations {
		switch rec.Type {
		case RecommendationCritical, RecommendationPolicy, RecommendationOptimization:
		default:
			insights.Recommendations[i].Type = RecommendationOptimization
		}
	}
	return &insights, nil
}

func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.Index(s, "\n"); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
