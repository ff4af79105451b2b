// Package handler は公開コンテンツAPIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pressgate/internal/content"
	"github.com/hitoshi/pressgate/internal/model"
)

// ContentQueryInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentQueryInterface interface {
	// ListPosts は公開済み投稿の一覧をページネーション付きで返す。
	ListPosts(ctx context.Context, categorySlug, cursor string, limit int) (*content.PostList, error)
	// GetPostBySlug はスラッグで公開済み投稿を取得する。
	GetPostBySlug(ctx context.Context, slug string) (*model.Post, error)
	// GetPageBySlug はスラッグで公開済み固定ページを取得する。
	GetPageBySlug(ctx context.Context, slug string) (*model.Page, error)
	// ListPages は公開済み固定ページの一覧を返す。
	ListPages(ctx context.Context) ([]*model.Page, error)
	// ListCategories は全カテゴリの一覧を返す。
	ListCategories(ctx context.Context) ([]*model.Category, error)
	// ListAuthors は全著者の一覧を返す。
	ListAuthors(ctx context.Context) ([]*model.Author, error)
}

// ContentHandler はキャッシュ済みコンテンツ配信のHTTPハンドラー。
// レスポンスに含まれるHTMLはすべて取り込み時にサニタイズ済み。
type ContentHandler struct {
	service ContentQueryInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentQueryInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

// --- レスポンス型 ---

// postSummaryResponse は投稿一覧のサマリーレスポンス。
type postSummaryResponse struct {
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	ExcerptHTML     string    `json:"excerpt_html"`
	ExcerptText     string    `json:"excerpt_text"`
	Link            string    `json:"link"`
	AuthorID        int64     `json:"author_id"`
	CategoryIDs     []int64   `json:"category_ids"`
	FeaturedMediaID int64     `json:"featured_media_id,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	ModifiedAt      time.Time `json:"modified_at"`
}

// postListResponse は投稿一覧のレスポンス。
type postListResponse struct {
	Posts      []postSummaryResponse `json:"posts"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// postDetailResponse は投稿詳細のレスポンス。
type postDetailResponse struct {
	postSummaryResponse
	ContentHTML string `json:"content_html"` // サニタイズ済みHTML
}

// pageResponse は固定ページのレスポンス。
type pageResponse struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	ContentHTML string    `json:"content_html"` // サニタイズ済みHTML
	Link        string    `json:"link"`
	ParentID    int64     `json:"parent_id,omitempty"`
	MenuOrder   int       `json:"menu_order"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// categoryResponse はカテゴリのレスポンス。
type categoryResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    int64  `json:"parent_id,omitempty"`
	Count       int    `json:"count"`
}

// authorResponse は著者のレスポンス。
type authorResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListPosts は公開済み投稿の一覧を取得する。
// GET /api/posts?category=xxx&cursor=xxx&limit=20
func (h *ContentHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	categorySlug := r.URL.Query().Get("category")
	cursor := r.URL.Query().Get("cursor")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "limitパラメータの形式が不正です。",
				Category: "validation",
				Action:   "limitには正の整数を指定してください。",
			})
			return
		}
		limit = parsed
	}

	list, err := h.service.ListPosts(r.Context(), categorySlug, cursor, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	posts := make([]postSummaryResponse, len(list.Posts))
	for i, p := range list.Posts {
		posts[i] = toPostSummaryResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postListResponse{
		Posts:      posts,
		NextCursor: list.NextCursor,
	})
}

// GetPost はスラッグで投稿詳細を取得する。
// GET /api/posts/:slug
func (h *ContentHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := h.service.GetPostBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postDetailResponse{
		postSummaryResponse: toPostSummaryResponse(post),
		ContentHTML:         post.ContentHTML,
	})
}

// ListPages は公開済み固定ページの一覧を取得する。
// GET /api/pages
func (h *ContentHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]pageResponse, len(pages))
	for i, p := range pages {
		results[i] = toPageResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]pageResponse{"pages": results})
}

// GetPage はスラッグで固定ページを取得する。
// GET /api/pages/:slug
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	page, err := h.service.GetPageBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPageResponse(page))
}

// ListCategories はカテゴリの一覧を取得する。
// GET /api/categories
func (h *ContentHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]categoryResponse, len(categories))
	for i, c := range categories {
		results[i] = categoryResponse{
			Slug:        c.Slug,
			Name:        c.Name,
			Description: c.Description,
			ParentID:    c.ParentWPID,
			Count:       c.Count,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]categoryResponse{"categories": results})
}

// ListAuthors は著者の一覧を取得する。
// GET /api/authors
func (h *ContentHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.service.ListAuthors(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]authorResponse, len(authors))
	for i, a := range authors {
		results[i] = authorResponse{
			Slug:        a.Slug,
			Name:        a.Name,
			Description: a.Description,
			AvatarURL:   a.AvatarURL,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]authorResponse{"authors": results})
}

// --- ヘルパー関数 ---

// toPostSummaryResponse はmodel.PostからAPIレスポンスに変換する。
func toPostSummaryResponse(p *model.Post) postSummaryResponse {
	return postSummaryResponse{
		Slug:            p.Slug,
		Title:           p.Title,
		ExcerptHTML:     p.ExcerptHTML,
		ExcerptText:     p.ExcerptText,
		Link:            p.Link,
		AuthorID:        p.AuthorWPID,
		CategoryIDs:     p.CategoryWPIDs,
		FeaturedMediaID: p.FeaturedMediaWPID,
		PublishedAt:     p.PublishedAt,
		ModifiedAt:      p.ModifiedAt,
	}
}

// toPageResponse はmodel.PageからAPIレスポンスに変換する。
func toPageResponse(p *model.Page) pageResponse {
	return pageResponse{
		Slug:        p.Slug,
		Title:       p.Title,
		ContentHTML: p.ContentHTML,
		Link:        p.Link,
		ParentID:    p.ParentWPID,
		MenuOrder:   p.MenuOrder,
		ModifiedAt:  p.ModifiedAt,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePostNotFound, model.ErrCodePageNotFound, model.ErrCodeCategoryNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidSlug, model.ErrCodeInvalidCursor:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamBlocked:
		return http.StatusForbidden
	case model.ErrCodeUpstreamFetch, model.ErrCodeUpstreamParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
