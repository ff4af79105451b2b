package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pressgate/internal/model"
	"github.com/hitoshi/pressgate/internal/repository"
	"github.com/hitoshi/pressgate/internal/sanitize"
)

// DefaultPostListLimit は投稿一覧のデフォルト取得件数。
const DefaultPostListLimit = 20

// MaxPostListLimit は投稿一覧の最大取得件数。
const MaxPostListLimit = 100

// PostList は投稿一覧とページネーションカーソルを表す。
// NextCursorが空の場合は最終ページを意味する。
type PostList struct {
	Posts      []*model.Post
	NextCursor string
}

// QueryService はキャッシュ済みコンテンツの照会を提供する。
// 返却されるHTMLはすべて取り込み時にサニタイズ済み。
type QueryService struct {
	postRepo     repository.PostRepository
	pageRepo     repository.PageRepository
	categoryRepo repository.CategoryRepository
	authorRepo   repository.AuthorRepository
	logger       *slog.Logger
}

// NewQueryService はQueryServiceの新しいインスタンスを生成する。
func NewQueryService(
	postRepo repository.PostRepository,
	pageRepo repository.PageRepository,
	categoryRepo repository.CategoryRepository,
	authorRepo repository.AuthorRepository,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		postRepo:     postRepo,
		pageRepo:     pageRepo,
		categoryRepo: categoryRepo,
		authorRepo:   authorRepo,
		logger:       logger,
	}
}

// ListPosts は公開済み投稿の一覧を(published_at, id)降順で返す。
// categorySlugが空でない場合はそのカテゴリの投稿に絞り込む。
// cursorは前回のレスポンスのNextCursorをそのまま渡す。クライアントは
// 中身を解釈しない不透明な文字列として扱う。
func (s *QueryService) ListPosts(ctx context.Context, categorySlug, cursor string, limit int) (*PostList, error) {
	if limit <= 0 {
		limit = DefaultPostListLimit
	}
	if limit > MaxPostListLimit {
		limit = MaxPostListLimit
	}

	var categoryWPID int64
	if categorySlug != "" {
		if !sanitize.IsValidSlug(categorySlug) {
			return nil, model.NewInvalidSlugError()
		}
		category, err := s.categoryRepo.FindBySlug(ctx, categorySlug)
		if err != nil {
			return nil, fmt.Errorf("カテゴリの検索に失敗: %w", err)
		}
		if category == nil {
			return nil, model.NewCategoryNotFoundError(categorySlug)
		}
		categoryWPID = category.WPID
	}

	cursorTime, cursorID, err := parsePostCursor(cursor)
	if err != nil {
		return nil, model.NewInvalidCursorError()
	}

	// limit+1件取得して次ページの有無を判定する
	posts, err := s.postRepo.List(ctx, categoryWPID, cursorTime, cursorID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}

	list := &PostList{Posts: posts}
	if len(posts) > limit {
		list.Posts = posts[:limit]
		last := list.Posts[limit-1]
		list.NextCursor = last.PublishedAt.Format(time.RFC3339Nano) + "," + last.ID
	}

	return list, nil
}

// parsePostCursor はページネーションカーソルを分解する。
// 形式は「published_at(RFC3339Nano),id(UUID)」。published_atは秒精度で
// 衝突しうるため、idを含めてページ境界を一意に特定する。
// id部を持たない時刻のみのカーソルも受け付ける。
func parsePostCursor(cursor string) (time.Time, string, error) {
	if cursor == "" {
		return time.Time{}, "", nil
	}

	timePart, idPart, hasID := strings.Cut(cursor, ",")
	parsed, err := time.Parse(time.RFC3339Nano, timePart)
	if err != nil {
		return time.Time{}, "", err
	}
	if !hasID {
		return parsed, "", nil
	}
	if _, err := uuid.Parse(idPart); err != nil {
		return time.Time{}, "", err
	}
	return parsed, idPart, nil
}

// GetPostBySlug はスラッグで公開済み投稿を取得する。
// スラッグが不正な形式の場合はリポジトリに到達する前に拒否する。
func (s *QueryService) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	if !sanitize.IsValidSlug(slug) {
		return nil, model.NewInvalidSlugError()
	}

	post, err := s.postRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("投稿の検索に失敗: %w", err)
	}
	if post == nil || post.Status != model.PostStatusPublish {
		return nil, model.NewPostNotFoundError(slug)
	}

	return post, nil
}

// GetPageBySlug はスラッグで公開済み固定ページを取得する。
func (s *QueryService) GetPageBySlug(ctx context.Context, slug string) (*model.Page, error) {
	if !sanitize.IsValidSlug(slug) {
		return nil, model.NewInvalidSlugError()
	}

	page, err := s.pageRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("固定ページの検索に失敗: %w", err)
	}
	if page == nil || page.Status != model.PostStatusPublish {
		return nil, model.NewPageNotFoundError(slug)
	}

	return page, nil
}

// ListPages は公開済み固定ページの一覧を返す。
func (s *QueryService) ListPages(ctx context.Context) ([]*model.Page, error) {
	pages, err := s.pageRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("固定ページ一覧の取得に失敗: %w", err)
	}
	return pages, nil
}

// ListCategories は全カテゴリの一覧を返す。
func (s *QueryService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗: %w", err)
	}
	return categories, nil
}

// ListAuthors は全著者の一覧を返す。
func (s *QueryService) ListAuthors(ctx context.Context) ([]*model.Author, error) {
	authors, err := s.authorRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("著者一覧の取得に失敗: %w", err)
	}
	return authors, nil
}
