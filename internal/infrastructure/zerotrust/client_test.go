package zerotrust

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
)

var testSettings = assessment.Settings{AccountID: "acct-1", Email: "sec@example.com", APIKey: "secret"}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.ZeroTrustConfig{
		BaseURL:      server.URL,
		Timeout:      5 * time.Second,
		RateLimitRPS: 100,
		PageSize:     2,
		MaxPages:     5,
		MaxRetries:   2,
	}, zaptest.NewLogger(t))
	client.retryInitial = time.Millisecond
	return client
}

func TestClient_AppTypes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/gateway/app_types", r.URL.Path)
		assert.Equal(t, "sec@example.com", r.Header.Get("X-Auth-Email"))
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Key"))

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"success":true,"result":[{"id":1,"name":"ChatGPT","application_type_id":25},{"id":"2","name":"Slack","application_type_id":4}],"result_info":{"page":1,"total_pages":2}}`)
		default:
			fmt.Fprint(w, `{"success":true,"result":[{"id":3,"name":"Claude","application_type_id":25},"garbage"],"result_info":{"page":2,"total_pages":2}}`)
		}
	}))

	entries, err := client.AppTypes(context.Background(), testSettings)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, assessment.AppCatalogEntry{ID: "1", Name: "ChatGPT", ApplicationTypeID: 25}, entries[0])
	assert.Equal(t, "3", entries[2].ID)
}

func TestClient_BearerAuth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-only", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Auth-Email"))
		fmt.Fprint(w, `{"result":[]}`)
	}))

	entries, err := client.AppTypes(context.Background(), assessment.Settings{AccountID: "a", APIKey: "token-only"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClient_ReviewStatus(t *testing.T) {
	t.Run("object shape", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{"approved_apps":[1,2],"in_review_apps":["3"],"unapproved_apps":[4]}}`)
		}))

		status, err := client.ReviewStatus(context.Background(), testSettings)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, status.Approved)
		assert.Equal(t, []string{"3"}, status.InReview)
		assert.Equal(t, []string{"4"}, status.Unapproved)
	})

	t.Run("row shape", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":[{"id":1,"status":"approved"},{"id":2,"status":"in-review"},{"id":3,"status":"unapproved"},{"id":4,"status":"other"}]}`)
		}))

		status, err := client.ReviewStatus(context.Background(), testSettings)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, status.Approved)
		assert.Equal(t, []string{"2"}, status.InReview)
		assert.Equal(t, []string{"3"}, status.Unapproved)
	})
}

func TestClient_AccessEvents(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/access/logs/access_requests", r.URL.Path)
		assert.Equal(t, "2026-09-19T00:00:00Z", r.URL.Query().Get("since"))
		fmt.Fprint(w, `{"result":[
			{"timestamp":"2026-10-18T10:00:00Z","gateway_app_id":11,"gateway_app_name":"ChatGPT","user_email":"ana@example.com","bytes_sent":2048},
			{"created_at":1760780000,"app_uid":"12","app_name":"Claude","email":"bo@example.com"},
			{"timestamp":"not-a-time"}
		]}`)
	}))

	since := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)
	events, err := client.AccessEvents(context.Background(), testSettings, since)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "11", events[0].GatewayAppID)
	assert.Equal(t, "ChatGPT", events[0].GatewayAppName)
	assert.Equal(t, int64(2048), events[0].BytesSent)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC), events[0].Timestamp)

	assert.Equal(t, "12", events[1].GatewayAppID)
	assert.Equal(t, "Claude", events[1].GatewayAppName)
	assert.Equal(t, "bo@example.com", events[1].UserEmail)
	assert.Equal(t, int64(1760780000), events[1].Timestamp.Unix())
}

func TestClient_MalformedBodyDegradesToEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))

	entries, err := client.AppTypes(context.Background(), testSettings)
	require.NoError(t, err)
	assert.Empty(t, entries)

	events, err := client.AccessEvents(context.Background(), testSettings, time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"result":[{"id":1,"application_type_id":25}]}`)
	}))

	entries, err := client.AppTypes(context.Background(), testSettings)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorIsUpstreamFailure(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.AppTypes(context.Background(), testSettings)
	require.Error(t, err)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeUpstreamFetch))
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.AppTypes(context.Background(), testSettings)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusTooManyRequests))
	// one attempt plus MaxRetries
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_SpansUseTelemetryTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[]}`)
	}))

	_, err := client.AppTypes(context.Background(), testSettings)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "zerotrust.app_types", spans[0].Name())
	assert.Equal(t, "zerotrust", spans[0].InstrumentationScope().Name)
}
