package assessment

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AIApplicationTypeID is the platform's application-type id for AI apps.
const AIApplicationTypeID = 25

// DefaultAINamePatterns are matched case-insensitively as substrings of
// gateway app names.
var DefaultAINamePatterns = []string{
	"openai", "chatgpt", "gpt", "claude", "anthropic", "gemini", "bard",
	"copilot", "perplexity", "midjourney", "hugging", "mistral", "deepseek",
	"character.ai", "jasper", "poe", "cohere", "grok", "llama",
}

// NameMatcher decides whether a gateway app name belongs to an AI app.
type NameMatcher struct {
	patterns []string
}

func NewNameMatcher(patterns []string) *NameMatcher {
	if len(patterns) == 0 {
		patterns = DefaultAINamePatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &NameMatcher{patterns: lowered}
}

func (m *NameMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range m.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// AIIDs returns the deduplicated ids of AI-category catalog entries.
func AIIDs(catalog []AppCatalogEntry, aiTypeID int) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, entry := range catalog {
		if entry.ApplicationTypeID == aiTypeID && entry.ID != "" {
			ids[entry.ID] = struct{}{}
		}
	}
	return ids
}

// Intersect counts members of ids that are also in other.
func Intersect(ids, other map[string]struct{}) int {
	n := 0
	for id := range ids {
		if _, ok := other[id]; ok {
			n++
		}
	}
	return n
}

// CountIn counts distinct entries of list that are present in set.
func CountIn(list []string, set map[string]struct{}) int {
	seen := make(map[string]struct{}, len(list))
	n := 0
	for _, id := range list {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}

func ShadowCount(totalAI, managedAI int) int {
	if totalAI-managedAI < 0 {
		return 0
	}
	return totalAI - managedAI
}

// Percentage returns part/total*100, or 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// HealthScore is 100 - shadowUsage/1.5 - unapproved*2, rounded and
// clamped to [0,100].
func HealthScore(shadowUsage float64, unapprovedAI int) int {
	score := math.Round(100 - shadowUsage/1.5 - float64(unapprovedAI)*2)
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

func ClassifyRisk(shadowUsage float64) RiskLevel {
	switch {
	case shadowUsage > 50:
		return RiskHigh
	case shadowUsage > 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ExfiltrationMeter sums bytes sent to unmanaged apps in kilobytes.
type ExfiltrationMeter struct {
	total decimal.Decimal
}

var bytesPerKB = decimal.NewFromInt(1024)

func (m *ExfiltrationMeter) Add(bytesSent int64) {
	if bytesSent <= 0 {
		return
	}
	m.total = m.total.Add(decimal.NewFromInt(bytesSent).Div(bytesPerKB))
}

// KB returns the floored total.
func (m *ExfiltrationMeter) KB() int64 {
	return m.total.Floor().IntPart()
}
