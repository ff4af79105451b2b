package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/pressgate/internal/middleware"
	"github.com/hitoshi/pressgate/internal/model"
)

// mockPinger はDBPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newRouterForTest(t *testing.T, svc ContentQueryInterface, pinger DBPinger) http.Handler {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            100,
		Burst:           100,
		CleanupInterval: 1 * time.Minute,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            logger,
		ContentService:    svc,
		DB:                pinger,
	})
}

func TestRouter_HealthEndpoint_ReturnsOK(t *testing.T) {
	router := newRouterForTest(t, &mockContentService{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestRouter_HealthEndpoint_DBDown_Returns503(t *testing.T) {
	router := newRouterForTest(t, &mockContentService{}, &mockPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRouter_AllContentRoutes_AreWired(t *testing.T) {
	svc := &mockContentService{
		getPostBySlugFn: func(ctx context.Context, slug string) (*model.Post, error) {
			return samplePost(), nil
		},
		getPageBySlugFn: func(ctx context.Context, slug string) (*model.Page, error) {
			return &model.Page{Slug: slug, Status: model.PostStatusPublish}, nil
		},
	}

	router := newRouterForTest(t, svc, &mockPinger{})

	paths := []string{
		"/api/posts",
		"/api/posts/hello-world",
		"/api/pages",
		"/api/pages/about",
		"/api/categories",
		"/api/authors",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "203.0.113.60:51234"
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
			}
		})
	}
}

func TestRouter_SetsSecurityAndCORSHeaders(t *testing.T) {
	router := newRouterForTest(t, &mockContentService{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.RemoteAddr = "203.0.113.61:51234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRouter_RateLimitAppliesToAPIRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            1,
		Burst:           1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	router := NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            logger,
		ContentService:    &mockContentService{},
		DB:                &mockPinger{},
	})

	// 1回目は通る
	req1 := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req1.RemoteAddr = "203.0.113.62:51234"
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, req1)

	if w1.Result().StatusCode != http.StatusOK {
		t.Errorf("first request: status = %d, want %d", w1.Result().StatusCode, http.StatusOK)
	}

	// 2回目は429
	req2 := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req2.RemoteAddr = "203.0.113.62:51234"
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	// ヘルスチェックはレート制限の外
	reqH := httptest.NewRequest(http.MethodGet, "/health", nil)
	reqH.RemoteAddr = "203.0.113.62:51234"
	wH := httptest.NewRecorder()
	router.ServeHTTP(wH, reqH)

	if wH.Result().StatusCode != http.StatusOK {
		t.Errorf("health request: status = %d, want %d", wH.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newRouterForTest(t, &mockContentService{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	req.RemoteAddr = "203.0.113.63:51234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestRouter_WriteOperations_Rejected(t *testing.T) {
	router := newRouterForTest(t, &mockContentService{}, &mockPinger{})

	methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/posts", nil)
			req.RemoteAddr = "203.0.113.64:51234"
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusMethodNotAllowed)
			}
		})
	}
}
