package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pressgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// コンテンツ
	ContentService ContentQueryInterface

	// ヘルスチェック
	DB DBPinger

	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → RateLimit
//
// ヘルスチェックとメトリクスはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	contentHandler := NewContentHandler(deps.ContentService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- レート制限の外のルート ---

	r.Get("/health", healthHandler.Check)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 公開コンテンツAPI ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// 投稿
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", contentHandler.ListPosts)
			r.Get("/{slug}", contentHandler.GetPost)
		})

		// 固定ページ
		r.Route("/api/pages", func(r chi.Router) {
			r.Get("/", contentHandler.ListPages)
			r.Get("/{slug}", contentHandler.GetPage)
		})

		// カテゴリと著者
		r.Get("/api/categories", contentHandler.ListCategories)
		r.Get("/api/authors", contentHandler.ListAuthors)
	})

	return r
}
