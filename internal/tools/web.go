package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// SearchResult is one hit returned by search_web.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (e *Executor) get(ctx context.Context, target string) (body []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := e.httpClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("http_error:%d", resp.StatusCode)
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// webErrorCode maps a request failure onto a result error code.
func webErrorCode(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}
	return err.Error()
}

// isLocalHost reports whether host is localhost or a loopback, private or
// link-local address.
func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast())
}

func (e *Executor) fetchWeb(ctx context.Context, args parser.Args) Result {
	const tool = "fetch_web"
	target := strings.TrimSpace(args.StringOr("url", ""))
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fail(tool, "invalid_url_scheme", map[string]any{"url": target})
	}
	resource, reason := permission.NetworkInternet, "fetch_web needs internet access."
	if isLocalHost(parsed.Hostname()) {
		resource, reason = permission.NetworkLocal, "fetch_web needs local network access."
	}
	if !e.allowed(resource, reason) {
		return denied(tool, resource)
	}
	body, contentType, err := e.get(ctx, target)
	if err != nil {
		return fail(tool, webErrorCode(err), map[string]any{"url": target})
	}

	text := strings.ToValidUTF8(string(body), "�")
	if strings.Contains(strings.ToLower(contentType), "html") {
		if extracted, err := HTMLText(strings.NewReader(text)); err == nil {
			text = extracted
		}
	}
	content, truncated, total := truncateRunes(text, maxChars(args))
	return succeed(tool, map[string]any{
		"url":          target,
		"content_type": contentType,
		"content":      content,
		"truncated":    truncated,
		"total_chars":  total,
	})
}

func (e *Executor) searchWeb(ctx context.Context, args parser.Args) Result {
	const tool = "search_web"
	query := strings.TrimSpace(args.StringOr("query", ""))
	if query == "" {
		return fail(tool, "missing_query", nil)
	}
	engine := strings.ToLower(strings.TrimSpace(args.StringOr("engine", "duckduckgo")))
	if engine == "" {
		engine = "duckduckgo"
	}
	endpoint, ok := e.SearchEndpoints[engine]
	if !ok {
		return fail(tool, "unsupported_engine", map[string]any{"engine": engine})
	}
	limit := min(max(args.Int("max_results", 5), 1), 10)
	if !e.allowed(permission.NetworkInternet, "search_web needs internet access.") {
		return denied(tool, permission.NetworkInternet)
	}

	searchURL := endpoint + url.QueryEscape(query)
	body, _, err := e.get(ctx, searchURL)
	if err != nil {
		return fail(tool, webErrorCode(err), map[string]any{"search_url": searchURL})
	}
	results, err := ParseSearchResults(strings.NewReader(string(body)), engine, limit)
	if err != nil {
		return fail(tool, "parse_failed", map[string]any{"search_url": searchURL, "message": err.Error()})
	}
	return succeed(tool, map[string]any{
		"engine":        engine,
		"query":         query,
		"results":       results,
		"search_url":    searchURL,
		"results_count": len(results),
	})
}

// HTMLText returns the visible text of an HTML document with one line per
// block of text. Script, style and head content is skipped.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if line := strings.Join(strings.Fields(n.Data), " "); line != "" {
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n"), nil
}

// ParseSearchResults extracts up to limit hits from a search engine
// result page. DuckDuckGo hits are result__a anchors; Google hits are
// /url?q= redirect anchors pointing at http(s) targets.
func ParseSearchResults(r io.Reader, engine string, limit int) ([]SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	results := []SearchResult{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if hit, ok := searchHit(n, engine); ok {
				results = append(results, hit)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func searchHit(a *html.Node, engine string) (SearchResult, bool) {
	href := strings.TrimSpace(attr(a, "href"))
	if href == "" {
		return SearchResult{}, false
	}
	switch engine {
	case "duckduckgo":
		if !hasClass(a, "result__a") {
			return SearchResult{}, false
		}
	case "google":
		rest, ok := strings.CutPrefix(href, "/url?q=")
		if !ok {
			return SearchResult{}, false
		}
		rest, _, _ = strings.Cut(rest, "&")
		target, err := url.QueryUnescape(rest)
		if err != nil || !strings.HasPrefix(target, "http") {
			return SearchResult{}, false
		}
		href = target
	default:
		return SearchResult{}, false
	}
	title := nodeText(a)
	if title == "" {
		title = href
	}
	return SearchResult{Title: title, URL: href}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
