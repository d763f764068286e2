package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"cinescope/config"
	"cinescope/handlers"
	"cinescope/services/explore"
	"cinescope/services/metadata"
	"cinescope/services/search"
	"cinescope/services/sessions"
	"cinescope/services/stream"
	"cinescope/utils"
)

// newTestRouter wires the real handlers against a metadata service with no
// API key, so nothing here reaches the network.
func newTestRouter(t *testing.T, limiter *IPRateLimiter) http.Handler {
	t.Helper()
	settings := config.DefaultSettings()
	settings.Cache.Directory = t.TempDir()

	svc := metadata.NewService(settings.Metadata, settings.Cache)
	embedder := stream.NewEmbedder(settings.Stream.EmbedBaseURL)
	registry := explore.NewRegistry(settings.Explore)

	exploreStore := sessions.NewStore[*explore.Session]("explore", time.Minute)
	searchStore := sessions.NewStore[*search.Session]("search", time.Minute)
	t.Cleanup(exploreStore.Shutdown)
	t.Cleanup(searchStore.Shutdown)

	pages, err := handlers.NewPagesHandler(svc, registry, embedder)
	if err != nil {
		t.Fatalf("NewPagesHandler: %v", err)
	}

	r := utils.NewRouter(nil)
	Register(r, Handlers{
		Pages:    pages,
		Metadata: handlers.NewMetadataHandler(svc, embedder),
		Explore:  handlers.NewExploreHandler(svc, registry, exploreStore),
		Search:   handlers.NewSearchHandler(svc, searchStore, time.Millisecond),
		Images:   handlers.NewImageHandler(afero.NewMemMapFs(), settings.Cache.Directory, settings.Metadata.ImageBaseURL),
	}, limiter)
	return r
}

func serve(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		want   int
		ctype  string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, "application/json"},
		{"blank search", http.MethodGet, "/api/search?q=", http.StatusOK, "application/json"},
		{"bad genre kind", http.MethodGet, "/api/genres/person", http.StatusBadRequest, "application/json"},
		{"details without key", http.MethodGet, "/api/details/movie/603", http.StatusServiceUnavailable, "application/json"},
		{"details non numeric id", http.MethodGet, "/api/details/movie/abc", http.StatusNotFound, "application/json"},
		{"image from foreign host", http.MethodGet, "/api/images?url=https://evil.example/x.jpg", http.StatusForbidden, "application/json"},
		{"unknown explore category", http.MethodPost, "/api/explore/documentaries/sessions", http.StatusNotFound, "application/json"},
		{"unknown search session", http.MethodGet, "/api/search/sessions/nope", http.StatusNotFound, "application/json"},
		{"search page", http.MethodGet, "/search", http.StatusOK, "text/html"},
		{"unknown page", http.MethodGet, "/person/5", http.StatusNotFound, "text/html"},
		{"unknown explore page", http.MethodGet, "/explore/documentaries", http.StatusNotFound, "text/html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.method, tt.target, nil)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.ctype) {
				t.Fatalf("expected %s, got %q", tt.ctype, ct)
			}
		})
	}
}

func TestRoutesPreflight(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := serve(r, http.MethodOptions, "/api/explore/sessions/abc/page", map[string]string{"Origin": "http://192.168.1.20:3000"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://192.168.1.20:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRoutesRateLimited(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)
	defer limiter.Stop()
	r := newTestRouter(t, limiter)

	if rec := serve(r, http.MethodGet, "/api/search?q=", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/api/search?q=", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	// pages are not rate limited
	if rec := serve(r, http.MethodGet, "/search", nil); rec.Code != http.StatusOK {
		t.Fatalf("pages should not be limited, got %d", rec.Code)
	}
}
