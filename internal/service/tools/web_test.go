package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
)

func defaultToolsConfig() config.ToolsConfig {
	return config.ToolsConfig{
		FetchTimeout:    10 * time.Second,
		MaxContentChars: 4000,
		MaxBodyBytes:    2 << 20,
		// test servers listen on loopback
		AllowPrivateHosts: true,
	}
}

func TestWebTool_FetchStripsMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>t</title><style>body{}</style></head>
<body><h1>AI Policy</h1><script>alert("x")</script><p>Use   approved tools.</p></body></html>`)
	}))
	defer server.Close()

	result, err := NewWebTool(defaultToolsConfig()).Execute(context.Background(), map[string]interface{}{
		"action": "fetch",
		"url":    server.URL,
	})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, "AI Policy Use approved tools.", data["content"])
	assert.Equal(t, false, data["truncated"])
	assert.Equal(t, "text/html", data["contentType"])
}

func TestWebTool_FetchTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", 5000))
	}))
	defer server.Close()

	result, err := NewWebTool(defaultToolsConfig()).Execute(context.Background(), map[string]interface{}{
		"url": server.URL,
	})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Len(t, data["content"], 4000)
	assert.Equal(t, true, data["truncated"])
}

func TestWebTool_FetchRejections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50})
	}))
	defer server.Close()

	tool := NewWebTool(defaultToolsConfig())
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]interface{}{"action": "fetch", "url": "not a url"})
	assert.ErrorContains(t, err, "invalid url")

	_, err = tool.Execute(ctx, map[string]interface{}{"action": "fetch", "url": "ftp://example.com/file"})
	assert.ErrorContains(t, err, "invalid url")

	_, err = tool.Execute(ctx, map[string]interface{}{"action": "fetch", "url": server.URL + "/image"})
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = tool.Execute(ctx, map[string]interface{}{"action": "fetch", "url": server.URL + "/missing"})
	assert.ErrorContains(t, err, "status 404")
}

func TestWebTool_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := defaultToolsConfig()
	cfg.FetchTimeout = 20 * time.Millisecond

	_, err := NewWebTool(cfg).Execute(context.Background(), map[string]interface{}{"url": server.URL})
	assert.ErrorContains(t, err, "fetch failed")
}

func TestWebTool_Search(t *testing.T) {
	tool := NewWebTool(defaultToolsConfig())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "search",
		"query":  "shadow ai policy",
	})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Empty(t, data["results"])
	assert.Equal(t, "https://duckduckgo.com/?q=shadow+ai+policy", data["fallback"])

	_, err = tool.Execute(context.Background(), map[string]interface{}{"action": "search"})
	assert.ErrorContains(t, err, "query is required")

	_, err = tool.Execute(context.Background(), map[string]interface{}{"action": "crawl"})
	assert.ErrorContains(t, err, "unsupported web action")
}

func TestWebTool_FetchRejectsPrivateDestinations(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "internal")
	}))
	defer server.Close()

	cfg := defaultToolsConfig()
	cfg.AllowPrivateHosts = false
	tool := NewWebTool(cfg)

	for _, target := range []string{server.URL, "http://169.254.169.254/latest/meta-data/", "http://10.0.0.1/", "http://[::1]:1/"} {
		_, err := tool.Execute(context.Background(), map[string]interface{}{"action": "fetch", "url": target})
		require.Error(t, err, target)
		assert.ErrorIs(t, err, ErrDestinationNotAllowed, target)
	}
	assert.Zero(t, hits.Load())
}
