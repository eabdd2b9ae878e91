package zerotrust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
)

const (
	SourceAppTypes     = "app_types"
	SourceReviewStatus = "review_status"
	SourceAccessEvents = "access_events"

	maxResponseBytes = 32 << 20
)

// Client reads the application catalog, review decisions and access
// events for an account from the identity platform. Transport failures
// are returned as upstream fetch errors; malformed bodies yield empty
// results.
type Client struct {
	config       config.ZeroTrustConfig
	client       *http.Client
	rateLimiter  *rate.Limiter
	logger       *zap.Logger
	tracer       trace.Tracer
	retryInitial time.Duration
}

// NewClient creates a new identity platform client
func NewClient(cfg config.ZeroTrustConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:       cfg,
		client:       httpClient,
		rateLimiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS*2),
		logger:       logger,
		tracer:       telemetry.Tracer("zerotrust"),
		retryInitial: 250 * time.Millisecond,
	}
}

// AppTypes fetches the application-type catalog.
func (c *Client) AppTypes(ctx context.Context, settings assessment.Settings) ([]assessment.AppCatalogEntry, error) {
	pages, err := c.fetchAll(ctx, settings, SourceAppTypes, "gateway/app_types", nil)
	if err != nil {
		return nil, err
	}

	entries := make([]assessment.AppCatalogEntry, 0)
	for _, raw := range c.records(SourceAppTypes, pages) {
		var rec appTypeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Debug("skipping malformed app type record", zap.Error(err))
			continue
		}
		entries = append(entries, assessment.AppCatalogEntry{
			ID:                string(rec.ID),
			Name:              rec.Name,
			ApplicationTypeID: rec.ApplicationTypeID,
		})
	}
	return entries, nil
}

// ReviewStatus fetches approved, in-review and unapproved application ids.
func (c *Client) ReviewStatus(ctx context.Context, settings assessment.Settings) (assessment.ReviewStatusSet, error) {
	status := assessment.ReviewStatusSet{
		Approved:   []string{},
		InReview:   []string{},
		Unapproved: []string{},
	}

	pages, err := c.fetchAll(ctx, settings, SourceReviewStatus, "gateway/apps/review_status", nil)
	if err != nil {
		return status, err
	}

	for _, page := range pages {
		trimmed := strings.TrimSpace(string(page))
		switch {
		case strings.HasPrefix(trimmed, "{"):
			var obj reviewStatusObject
			if err := json.Unmarshal(page, &obj); err != nil {
				c.logMalformed(SourceReviewStatus, err)
				continue
			}
			status.Approved = append(status.Approved, idsToStrings(obj.ApprovedApps)...)
			status.InReview = append(status.InReview, idsToStrings(obj.InReviewApps)...)
			status.Unapproved = append(status.Unapproved, idsToStrings(obj.UnapprovedApps)...)
		case strings.HasPrefix(trimmed, "["):
			for _, raw := range c.records(SourceReviewStatus, [][]byte{page}) {
				var row reviewStatusRow
				if err := json.Unmarshal(raw, &row); err != nil || row.ID == "" {
					continue
				}
				switch strings.ToLower(strings.ReplaceAll(row.Status, "-", "_")) {
				case "approved":
					status.Approved = append(status.Approved, string(row.ID))
				case "in_review":
					status.InReview = append(status.InReview, string(row.ID))
				case "unapproved":
					status.Unapproved = append(status.Unapproved, string(row.ID))
				}
			}
		}
	}
	return status, nil
}

// AccessEvents fetches access and gateway events recorded since the given time.
func (c *Client) AccessEvents(ctx context.Context, settings assessment.Settings, since time.Time) ([]assessment.AccessEvent, error) {
	query := url.Values{}
	query.Set("since", since.UTC().Format(time.RFC3339))
	query.Set("direction", "desc")

	pages, err := c.fetchAll(ctx, settings, SourceAccessEvents, "access/logs/access_requests", query)
	if err != nil {
		return nil, err
	}

	events := make([]assessment.AccessEvent, 0)
	for _, raw := range c.records(SourceAccessEvents, pages) {
		var rec accessEventRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Debug("skipping malformed access event", zap.Error(err))
			continue
		}
		events = append(events, assessment.AccessEvent{
			Timestamp:      rec.when(),
			GatewayAppID:   firstNonEmpty(string(rec.GatewayAppID), string(rec.AppUID)),
			GatewayAppName: firstNonEmpty(rec.GatewayAppName, rec.AppName),
			UserEmail:      firstNonEmpty(rec.UserEmail, rec.Email),
			BytesSent:      rec.BytesSent,
		})
	}
	return events, nil
}

// fetchAll follows result_info pagination and returns each page's raw
// result. Pages with malformed bodies are dropped.
func (c *Client) fetchAll(ctx context.Context, settings assessment.Settings, source, path string, query url.Values) ([][]byte, error) {
	ctx, span := c.tracer.Start(ctx, "zerotrust."+source,
		trace.WithAttributes(attribute.String("account_id", settings.AccountID)))
	defer span.End()

	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(c.config.PageSize))

	var pages [][]byte
	for page := 1; page <= c.config.MaxPages; page++ {
		query.Set("page", strconv.Itoa(page))

		body, err := c.get(ctx, settings, path, query)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, domainerrors.NewUpstreamFetchError(source, err)
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.logMalformed(source, err)
			break
		}
		if env.Success != nil && !*env.Success {
			c.logMalformed(source, fmt.Errorf("response reported success=false"))
			break
		}
		if len(env.Result) > 0 && string(env.Result) != "null" {
			pages = append(pages, env.Result)
		}

		if env.ResultInfo == nil || env.ResultInfo.TotalPages <= page {
			break
		}
	}

	span.SetAttributes(attribute.Int("pages", len(pages)))
	return pages, nil
}

// records flattens array pages into individual raw records.
func (c *Client) records(source string, pages [][]byte) []json.RawMessage {
	var out []json.RawMessage
	for _, page := range pages {
		var items []json.RawMessage
		if err := json.Unmarshal(page, &items); err != nil {
			c.logMalformed(source, err)
			continue
		}
		out = append(out, items...)
	}
	return out
}

func (c *Client) get(ctx context.Context, settings assessment.Settings, path string, query url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/%s?%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(settings.AccountID),
		path,
		query.Encode())

	var body []byte
	operation := func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		c.addAuthHeaders(req, settings)

		resp, err := c.client.Do(req)
		if err != nil {
			return retryable(domainerrors.NewExternalError("identity platform", "request failed").WithCause(err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retryable(domainerrors.NewUpstreamStatusError(resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}))
		}

		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial
	policy.MaxElapsedTime = c.config.Timeout

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.config.MaxRetries)), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("retrying identity platform request",
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Error(err))
		})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// retryable stops the backoff loop for errors that are not retryable.
func retryable(err error) error {
	if domainerrors.IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

func (c *Client) addAuthHeaders(req *http.Request, settings assessment.Settings) {
	req.Header.Set("Accept", "application/json")
	if settings.Email != "" {
		req.Header.Set("X-Auth-Email", settings.Email)
		req.Header.Set("X-Auth-Key", settings.APIKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+settings.APIKey)
}

func (c *Client) logMalformed(source string, err error) {
	c.logger.Warn("malformed identity platform response",
		zap.String("source", source),
		zap.Error(domainerrors.NewMalformedResponseError(source, err.Error())))
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
