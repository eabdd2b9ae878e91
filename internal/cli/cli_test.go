package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	"github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/service"
	"github.com/shadowscope/shadow-ai-assessor/internal/testutil"
)

func identityPlatform(t *testing.T) *httptest.Server {
	recent := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/gateway/app_types"):
			fmt.Fprint(w, `{"success":true,"result":[{"id":7,"name":"Gemini","application_type_id":25}]}`)
		case strings.HasSuffix(r.URL.Path, "/gateway/apps/review_status"):
			fmt.Fprint(w, `{"success":true,"result":{"approved_apps":[],"in_review_apps":[],"unapproved_apps":[]}}`)
		case strings.HasSuffix(r.URL.Path, "/access/logs/access_requests"):
			fmt.Fprintf(w, `{"success":true,"result":[
				{"timestamp":%q,"gateway_app_id":7,"gateway_app_name":"Gemini","user_email":"eve@corp.com","bytes_sent":2048}]}`, recent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type harness struct {
	services *service.Services
	out      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	store, _ := testutil.NewTestStore(t)

	cfg := config.Defaults()
	cfg.ZeroTrust.BaseURL = identityPlatform(t).URL

	return &harness{
		services: service.NewServices(cfg, store, zaptest.NewLogger(t), nil),
		out:      &bytes.Buffer{},
	}
}

func (h *harness) exec(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()

	root := NewRootCmd(func(ctx context.Context, configPath string) (*Env, error) {
		return &Env{Services: h.services}, nil
	}, h.out)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(testutil.TestContext(t))
}

func TestSettingsSetAndList(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.exec(t, "settings", "set", "acct-1", "--api-key", "k1", "--email", "a@corp.com"))
	assert.Contains(t, h.out.String(), "Saved settings for acct-1")

	require.NoError(t, h.exec(t, "settings", "set", "acct-2", "--api-key", "k2"))

	require.NoError(t, h.exec(t, "--json", "settings", "list"))
	var accounts []string
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &accounts))
	assert.ElementsMatch(t, []string{"acct-1", "acct-2"}, accounts)
}

func TestSettingsSet_RequiresAPIKey(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.exec(t, "settings", "set", "acct-1"))
}

func TestSettingsSet_NormalizesEmail(t *testing.T) {
	h := newHarness(t)

	err := h.exec(t, "settings", "set", "acct-1", "--api-key", "k1", "--email", "not-an-email")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, h.exec(t, "settings", "set", "acct-1", "--api-key", "k1", "--email", " Sec@Corp.com "))
	settings, err := h.services.Repositories.Settings.GetSettings(testutil.TestContext(t), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "sec@corp.com", settings.Email)
}

func TestRun_MissingCredentials(t *testing.T) {
	h := newHarness(t)

	err := h.exec(t, "run", "acct-unknown")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingCredentials))
}

func TestRun_ReportsAndLogs(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.exec(t, "settings", "set", "acct-1", "--api-key", "k1"))

	require.NoError(t, h.exec(t, "--json", "run", "acct-1"))
	var report assessment.Report
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	assert.Equal(t, 1, report.Summary.ShadowAIApps)
	assert.Equal(t, int64(2), report.Summary.DataExfiltrationKB)
	assert.Equal(t, assessment.RiskHigh, report.RiskLevel)

	require.NoError(t, h.exec(t, "reports", "list", "acct-1"))
	assert.Contains(t, h.out.String(), report.ID)

	require.NoError(t, h.exec(t, "reports", "show", "acct-1", report.ID))
	assert.Contains(t, h.out.String(), "Risk level:        High")
	assert.Contains(t, h.out.String(), "eve@corp.com")

	require.NoError(t, h.exec(t, "reports", "delete", "acct-1", report.ID, "--user", "admin@corp.com"))
	assert.Contains(t, h.out.String(), "Deleted report "+report.ID)

	require.NoError(t, h.exec(t, "--json", "logs", "acct-1"))
	var entries []assessment.AuditEntry
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "admin@corp.com", entries[0].User)

	err := h.exec(t, "reports", "show", "acct-1", report.ID)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestRootCmd_EnvFactoryError(t *testing.T) {
	root := NewRootCmd(func(ctx context.Context, configPath string) (*Env, error) {
		assert.Equal(t, "custom.yaml", configPath)
		return nil, fmt.Errorf("boom")
	}, &bytes.Buffer{})
	root.SetArgs([]string{"--config", "custom.yaml", "logs", "acct-1"})
	root.SetErr(&bytes.Buffer{})

	assert.EqualError(t, root.Execute(), "boom")
}
