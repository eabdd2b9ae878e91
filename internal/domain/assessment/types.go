package assessment

import (
	"encoding/json"
	"strings"
	"time"
)

// Settings carries the identity-platform credentials for one account.
type Settings struct {
	AccountID string `json:"accountId" validate:"required"`
	Email     string `json:"email"`
	APIKey    string `json:"apiKey" validate:"required"`
}

// AppCatalogEntry is one row of the application-type catalog.
type AppCatalogEntry struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	ApplicationTypeID int    `json:"applicationTypeId"`
}

// ReviewStatusSet holds the explicit review decisions for applications.
// The lists are disjoint by intent; overlap is tolerated.
type ReviewStatusSet struct {
	Approved   []string `json:"approved"`
	InReview   []string `json:"inReview"`
	Unapproved []string `json:"unapproved"`
}

// ManagedIDs unions every reviewed id into one set.
func (r ReviewStatusSet) ManagedIDs() map[string]struct{} {
	managed := make(map[string]struct{}, len(r.Approved)+len(r.InReview)+len(r.Unapproved))
	for _, list := range [][]string{r.Approved, r.InReview, r.Unapproved} {
		for _, id := range list {
			managed[id] = struct{}{}
		}
	}
	return managed
}

// AccessEvent is a single gateway or access-log record.
type AccessEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	GatewayAppID   string    `json:"gatewayAppId"`
	GatewayAppName string    `json:"gatewayAppName"`
	UserEmail      string    `json:"userEmail"`
	BytesSent      int64     `json:"bytesSent"`
}

// RiskLevel buckets the shadow usage percentage.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RecommendationType classifies an insight recommendation.
type RecommendationType string

const (
	RecommendationCritical     RecommendationType = "critical"
	RecommendationPolicy       RecommendationType = "policy"
	RecommendationOptimization RecommendationType = "optimization"
)

type Recommendation struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        RecommendationType `json:"type"`
}

// AIInsights is the narrative section of a report.
type AIInsights struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}

type PowerUser struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PromptCount int    `json:"promptCount"`
}

// Summary holds the headline figures of a report.
type Summary struct {
	TotalAIApps        int     `json:"totalAIApps"`
	ManagedAIApps      int     `json:"managedAIApps"`
	ShadowAIApps       int     `json:"shadowAIApps"`
	UnapprovedAIApps   int     `json:"unapprovedAIApps"`
	DataExfiltrationKB int64   `json:"dataExfiltrationKB"`
	ShadowUsageRate    float64 `json:"shadowUsageRate"`
	UnapprovedRate     float64 `json:"unapprovedRate"`
}

// AppLibraryEntry is filled by a later enrichment step.
type AppLibraryEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// TrendPoint is one day of distinct-user counts per trending app.
type TrendPoint struct {
	Date   string
	Counts map[string]int
}

// escapedAppPrefix marks app names that would collide with the "date" key
// in the flattened form.
const escapedAppPrefix = "app:"

func appKey(app string) string {
	if app == "date" || strings.HasPrefix(app, escapedAppPrefix) {
		return escapedAppPrefix + app
	}
	return app
}

// MarshalJSON flattens the point into {"date": ..., "<app>": n, ...}
// which is the shape chart renderers consume. App names equal to "date" or
// starting with "app:" are written with an "app:" prefix.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Counts)+1)
	for app, n := range p.Counts {
		flat[appKey(app)] = n
	}
	flat["date"] = p.Date
	return json.Marshal(flat)
}

func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	p.Counts = make(map[string]int, len(flat))
	for key, raw := range flat {
		if key == "date" {
			if err := json.Unmarshal(raw, &p.Date); err != nil {
				return err
			}
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		p.Counts[strings.TrimPrefix(key, escapedAppPrefix)] = n
	}
	return nil
}

type SecurityCharts struct {
	TopApps       []string     `json:"topApps"`
	TopAppsTrends []TrendPoint `json:"topAppsTrends"`
	Synthetic     bool         `json:"synthetic,omitempty"`
}

// Report is an immutable assessment snapshot.
type Report struct {
	ID             string            `json:"id"`
	AccountID      string            `json:"accountId"`
	Date           time.Time         `json:"date"`
	Score          int               `json:"score"`
	RiskLevel      RiskLevel         `json:"riskLevel"`
	Summary        Summary           `json:"summary"`
	PowerUsers     []PowerUser       `json:"powerUsers"`
	AppLibrary     []AppLibraryEntry `json:"appLibrary"`
	SecurityCharts SecurityCharts    `json:"securityCharts"`
	AIInsights     *AIInsights       `json:"aiInsights,omitempty"`
}

// AuditStatus is the outcome recorded for an audited action.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Action      string      `json:"action"`
	User        string      `json:"user"`
	Status      AuditStatus `json:"status"`
	Description string      `json:"description,omitempty"`
}
