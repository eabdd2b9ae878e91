package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
)

// WebTool fetches a single URL as plain text or answers a web search.
// Search has no backing engine yet and returns a link to run the query
// manually.
type WebTool struct {
	client       *http.Client
	maxChars     int
	maxBodyBytes int64
}

func NewWebTool(cfg config.ToolsConfig) *WebTool {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 4000
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}

	dialer := &net.Dialer{Timeout: cfg.FetchTimeout}
	if !cfg.AllowPrivateHosts {
		dialer.Control = publicOnly
	}

	return &WebTool{
		client: &http.Client{
			Timeout:   cfg.FetchTimeout,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		maxChars:     cfg.MaxContentChars,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

func (w *WebTool) Definition() Definition {
	return Definition{
		Name:        "web",
		Description: "Fetch the text content of a URL, or search the web for a query.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{
					"type": "string",
					"enum": []string{"fetch", "search"},
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Absolute http(s) URL to fetch",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
			},
			"required": []string{"action"},
		},
	}
}

func (w *WebTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	action := stringArg(args, "action")
	if action == "" {
		if stringArg(args, "url") != "" {
			action = "fetch"
		} else {
			action = "search"
		}
	}

	switch action {
	case "fetch":
		return w.fetch(ctx, stringArg(args, "url"))
	case "search":
		return w.search(stringArg(args, "query"))
	default:
		return nil, fmt.Errorf("unsupported web action %q", action)
	}
}

// ErrDestinationNotAllowed is returned when a fetch resolves to a loopback,
// private, link-local or unspecified address.
var ErrDestinationNotAllowed = errors.New("destination not allowed")

// publicOnly runs after name resolution, so it sees the address actually
// dialed.
func publicOnly(network, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDestinationNotAllowed, address)
	}
	ip := addrPort.Addr().Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrDestinationNotAllowed, ip)
	}
	return nil
}

var textContentTypes = []string{"application/json", "application/xml", "application/xhtml+xml"}

func (w *WebTool) fetch(ctx context.Context, rawURL string) (interface{}, error) {
	target, err := url.ParseRequestURI(rawURL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "shadow-ai-assessor/1.0")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !isTextual(mediaType) {
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	text := string(body)
	if strings.Contains(mediaType, "html") || strings.Contains(mediaType, "xml") {
		text = extractText(text)
	} else {
		text = collapseWhitespace(text)
	}
	text, truncated := truncate(text, w.maxChars)

	return map[string]interface{}{
		"url":         target.String(),
		"contentType": mediaType,
		"content":     text,
		"truncated":   truncated,
	}, nil
}

func (w *WebTool) search(query string) (interface{}, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	return map[string]interface{}{
		"query":    query,
		"results":  []interface{}{},
		"fallback": "https://duckduckgo.com/?q=" + url.QueryEscape(query),
		"note":     "Web search is not connected to a search provider; use the fallback link.",
	}, nil
}

func isTextual(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	for _, t := range textContentTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// extractText drops tags, scripts and styles and returns the visible text.
func extractText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenElement(name string) bool {
	switch name {
	case "script", "style", "noscript", "template", "svg", "head":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:maxChars]), true
}
