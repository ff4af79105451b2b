package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// TestRouterIntegration_MiddlewareChainWithChi は
// CORS → SecurityHeaders → RateLimit のミドルウェアチェーンが
// chi.Routerで正しく動作することを検証する。
func TestRouterIntegration_MiddlewareChainWithChi(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            1,
		Burst:           2,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewSecurityHeadersMiddleware())

	// ヘルスチェックはレート制限の外
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// APIルートグループはレート制限付き
	r.Group(func(r chi.Router) {
		r.Use(rl.Middleware())

		r.Get("/api/posts", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string][]string{"posts": {}})
		})
	})

	// テスト1: GET /api/posts はミドルウェアチェーンを通過する
	t.Run("GET_posts_passes_chain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.RemoteAddr = "203.0.113.50:51234"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
		}
	})

	// テスト2: バースト超過で429
	t.Run("GET_posts_rate_limited", func(t *testing.T) {
		var last *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			req.RemoteAddr = "203.0.113.51:51234"
			last = httptest.NewRecorder()
			r.ServeHTTP(last, req)
		}

		if last.Result().StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", last.Result().StatusCode, http.StatusTooManyRequests)
		}
	})

	// テスト3: ヘルスチェックはレート制限の影響を受けない
	t.Run("health_not_rate_limited", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = "203.0.113.51:51234"
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusOK {
				t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
			}
		}
	})

	// テスト4: OPTIONSプリフライトは204
	t.Run("OPTIONS_preflight_returns_204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
		req.RemoteAddr = "203.0.113.52:51234"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
		}
	})
}
