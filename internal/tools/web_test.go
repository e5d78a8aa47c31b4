package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodexForgeBR/tandem/internal/parser"
	"github.com/CodexForgeBR/tandem/internal/permission"
	"github.com/CodexForgeBR/tandem/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Ignored</title><style>body{color:red}</style></head>
<body>
  <h1>Release   notes</h1>
  <script>var hidden = 1;</script>
  <p>Version 2 adds <b>streaming</b>.</p>
</body>
</html>`

const duckPage = `<html><body>
<div class="result"><a class="result__a" href="https://go.dev/doc">The <b>Go</b> docs</a></div>
<div class="result"><a class="other" href="https://ads.example">ad</a></div>
<div class="result"><a class="result__a  big" href="https://pkg.go.dev">pkg.go.dev</a></div>
<div class="result"><a class="result__a" href="https://go.dev/blog"></a></div>
</body></html>`

const googlePage = `<html><body>
<a href="/url?q=https://go.dev/ref/mem&amp;sa=U">Go memory model</a>
<a href="/url?q=%2Fsearch%3Fq%3Dmore&amp;sa=U">internal</a>
<a href="/search?q=next">next page</a>
<a href="/url?q=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc&amp;sa=U"><span>Example</span></a>
</body></html>`

func TestHTMLText(t *testing.T) {
	text, err := HTMLText(strings.NewReader(samplePage))
	require.NoError(t, err)
	assert.Equal(t, "Release notes\nVersion 2 adds\nstreaming\n.", text)
}

func TestFetchWeb(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, samplePage)
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "0123456789")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e, _ := newTestExecutor(t)
	ctx := context.Background()

	res := e.Execute(ctx, call("fetch_web", parser.Args{"url": srv.URL + "/page"}))
	require.True(t, res.OK, res.Error)
	assert.Contains(t, res.Field("content"), "Release notes")
	assert.NotContains(t, res.Field("content"), "hidden")
	assert.Equal(t, false, res.Field("truncated"))

	res = e.Execute(ctx, call("fetch_web", parser.Args{"url": srv.URL + "/plain", "max_chars": int64(4)}))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "0123", res.Field("content"))
	assert.Equal(t, true, res.Field("truncated"))
	assert.Equal(t, 10, res.Field("total_chars"))

	res = e.Execute(ctx, call("fetch_web", parser.Args{"url": srv.URL + "/missing"}))
	assert.False(t, res.OK)
	assert.Equal(t, "http_error:404", res.Error)
}

func TestFetchWeb_Guards(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		perms   *fakePerms
		wantErr string
	}{
		{name: "file scheme", url: "file:///etc/passwd", perms: &fakePerms{all: true}, wantErr: "invalid_url_scheme"},
		{name: "no scheme", url: "example.com", perms: &fakePerms{all: true}, wantErr: "invalid_url_scheme"},
		{name: "internet denied", url: "https://example.com", perms: &fakePerms{}, wantErr: "permission_denied:network.internet"},
		{
			name:    "local needs its own grant",
			url:     "http://127.0.0.1:1/status",
			perms:   &fakePerms{allow: map[string]bool{permission.NetworkInternet: true}},
			wantErr: "permission_denied:network.local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(t.TempDir(), tt.perms, policy.Default())
			res := e.Execute(context.Background(), call("fetch_web", parser.Args{"url": tt.url}))
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestIsLocalHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want bool
	}{
		{name: "localhost", host: "localhost", want: true},
		{name: "dev subdomain", host: "app.localhost", want: true},
		{name: "loopback v4", host: "127.0.0.1", want: true},
		{name: "loopback v6", host: "::1", want: true},
		{name: "private", host: "192.168.1.20", want: true},
		{name: "link local", host: "169.254.10.1", want: true},
		{name: "public ip", host: "8.8.8.8", want: false},
		{name: "public name", host: "go.dev", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalHost(tt.host))
		})
	}
}

func TestParseSearchResults(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		engine string
		limit  int
		want   []SearchResult
	}{
		{
			name:   "duckduckgo",
			page:   duckPage,
			engine: "duckduckgo",
			limit:  5,
			want: []SearchResult{
				{Title: "The Go docs", URL: "https://go.dev/doc"},
				{Title: "pkg.go.dev", URL: "https://pkg.go.dev"},
				{Title: "https://go.dev/blog", URL: "https://go.dev/blog"},
			},
		},
		{
			name:   "duckduckgo limit",
			page:   duckPage,
			engine: "duckduckgo",
			limit:  1,
			want:   []SearchResult{{Title: "The Go docs", URL: "https://go.dev/doc"}},
		},
		{
			name:   "google",
			page:   googlePage,
			engine: "google",
			limit:  5,
			want: []SearchResult{
				{Title: "Go memory model", URL: "https://go.dev/ref/mem"},
				{Title: "Example", URL: "https://example.com/a?b=c"},
			},
		},
		{name: "no hits", page: "<html></html>", engine: "google", limit: 5, want: []SearchResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSearchResults(strings.NewReader(tt.page), tt.engine, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchWeb(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, duckPage)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(t)
	e.SearchEndpoints = map[string]string{"duckduckgo": srv.URL + "/html/?q="}

	res := e.Execute(context.Background(), call("search_web", parser.Args{"query": "go docs", "max_results": int64(50)}))

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "go docs", gotQuery)
	assert.Equal(t, "duckduckgo", res.Field("engine"))
	assert.Equal(t, srv.URL+"/html/?q=go+docs", res.Field("search_url"))
	assert.Equal(t, 3, res.Field("results_count"))
}

func TestSearchWeb_Guards(t *testing.T) {
	e, _ := newTestExecutor(t)
	ctx := context.Background()

	res := e.Execute(ctx, call("search_web", parser.Args{"query": " "}))
	assert.Equal(t, "missing_query", res.Error)

	res = e.Execute(ctx, call("search_web", parser.Args{"query": "x", "engine": "Bing"}))
	assert.Equal(t, "unsupported_engine", res.Error)
	assert.Equal(t, "bing", res.Field("engine"))
}
