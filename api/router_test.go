package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/listing"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/runner"
)

const searchPage = `<html><head><title>Results</title></head><body>
<div data-component-type="s-search-result" data-asin="A1">
  <h2><a><span>Desk Lamp</span></a></h2>
  <span class="a-price"><span class="a-offscreen">$24.99</span></span>
  <span class="a-icon-alt">4.6 out of 5 stars</span>
</div>
<div data-component-type="s-search-result" data-asin="B2">
  <span class="a-price"><span class="a-offscreen">$9.99</span></span>
</div>
</body></html>`

type stubEngine struct {
	html  string
	calls int
}

func (s *stubEngine) Name() string { return "static" }

func (s *stubEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	s.calls++
	return &engine.FetchResult{HTML: s.html, Title: "Results", StatusCode: 200, FinalURL: req.URL, EngineName: "static"}, nil
}

type stubPool struct{ stats models.PoolStats }

func (p stubPool) Stats() models.PoolStats { return p.stats }

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"k"}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	cfg.Engine.DefaultStrategy = "static"
	return cfg
}

func newTestServer(t *testing.T, static *stubEngine, pool *stubPool) http.Handler {
	t.Helper()
	rn, err := runner.New(runner.Options{Layout: listing.AmazonSearch()}, static, nil)
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	cc := cache.New(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	deps := Deps{Runner: rn, Cache: cc, StartTime: time.Now(), Version: "test"}
	if pool != nil {
		deps.Pool = pool
	}
	return NewRouter(ctx, testConfig(), deps)
}

func post(t *testing.T, h http.Handler, path string, body any) (*httptest.ResponseRecorder, models.ListingsResponse) {
	t.Helper()
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp models.ListingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &stubEngine{}, &stubPool{stats: models.PoolStats{MaxPages: 5, ActivePages: 5}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" || !resp.Browser || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_NoBrowser(t *testing.T) {
	h := newTestServer(t, &stubEngine{}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if !strings.Contains(w.Body.String(), `"browser":false`) || !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("body = %s", w.Body)
	}
}

func TestScrapeListings(t *testing.T) {
	static := &stubEngine{html: searchPage}
	h := newTestServer(t, static, nil)

	w, resp := post(t, h, "/api/v1/listings/scrape", map[string]any{"url": "https://shop.example/s?k=lamp"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if !resp.Success || resp.Strategy != "static" || resp.EngineUsed != "static" || resp.Backend != "css" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Summary == nil || resp.Summary.Total != 2 || resp.Summary.Successes != 1 || resp.Summary.Failures != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if len(resp.Records) != 1 || resp.Records[0].Name != "Desk Lamp" {
		t.Errorf("records = %+v", resp.Records)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Index != 1 || resp.Failures[0].Snippet == "" {
		t.Errorf("failures = %+v", resp.Failures)
	}
}

func TestScrapeListings_Cache(t *testing.T) {
	static := &stubEngine{html: searchPage}
	h := newTestServer(t, static, nil)
	body := map[string]any{"url": "https://shop.example/s?k=lamp", "max_age": 60000}

	_, first := post(t, h, "/api/v1/listings/scrape", body)
	_, second := post(t, h, "/api/v1/listings/scrape", body)
	if first.CacheStatus != "miss" || second.CacheStatus != "hit" {
		t.Errorf("cache status = %q then %q", first.CacheStatus, second.CacheStatus)
	}
	if static.calls != 1 {
		t.Errorf("engine called %d times, want 1", static.calls)
	}
}

func TestScrapeListings_Errors(t *testing.T) {
	tests := []struct {
		name string
		html string
		body map[string]any
		want int
		code string
	}{
		{"missing url", searchPage, map[string]any{}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"bad strategy", searchPage, map[string]any{"url": "https://shop.example/", "strategy": "fast"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"dynamic unavailable", searchPage, map[string]any{"url": "https://shop.example/", "strategy": "dynamic"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"no listings", "<html><body>captcha</body></html>", map[string]any{"url": "https://shop.example/"}, http.StatusUnprocessableEntity, models.ErrCodeNoListings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &stubEngine{html: tt.html}, nil)
			w, resp := post(t, h, "/api/v1/listings/scrape", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestExtractListings(t *testing.T) {
	h := newTestServer(t, &stubEngine{}, nil)

	w, resp := post(t, h, "/api/v1/listings/extract", map[string]any{
		"html":       searchPage,
		"source_url": "https://shop.example/s?k=lamp",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if resp.Strategy != "static" || resp.FinalURL != "https://shop.example/s?k=lamp" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Summary.Successes != 1 || len(resp.Records) != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t, &stubEngine{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/extract", strings.NewReader(`{"html":"<p></p>"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
