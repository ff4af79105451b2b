// Package content はWordPressコンテンツの取り込みと照会を提供する。
//
// 信頼境界はこのパッケージの取り込み処理にある。アップストリームから
// 届いたHTMLはすべてここでサニタイザを通過し、以降の層（DB、API、
// フロントエンド）はサニタイズ済みであることを前提にできる。
package content

import (
	"context"
	"crypto/sha256"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/pressgate/internal/model"
	"github.com/hitoshi/pressgate/internal/repository"
	"github.com/hitoshi/pressgate/internal/sanitize"
	"github.com/hitoshi/pressgate/internal/wordpress"
)

// HTMLSanitizer はHTMLサニタイズ処理のインターフェース。
type HTMLSanitizer interface {
	// Sanitize はHTML断片をブロックコンテキストのポリシーでサニタイズする。
	Sanitize(fragment string) string
	// SanitizeWithReport はサニタイズと同時に除去内容の集計を返す。
	SanitizeWithReport(fragment string) (string, sanitize.Report)
	// SanitizeInline はタイトル等のインラインコンテキスト向けにサニタイズする。
	SanitizeInline(fragment string) string
}

// SanitizeRecorder はサニタイズ集計の記録インターフェース。
type SanitizeRecorder interface {
	RecordSanitize(resource string, report sanitize.Report)
}

// IngestService はWordPressから取得したリソースをサニタイズして保存する。
// 同一性判定はwp_idで行い、content_hashが一致する場合は更新をスキップする。
type IngestService struct {
	postRepo     repository.PostRepository
	pageRepo     repository.PageRepository
	categoryRepo repository.CategoryRepository
	authorRepo   repository.AuthorRepository
	mediaRepo    repository.MediaRepository
	sanitizer    HTMLSanitizer
	textPolicy   *bluemonday.Policy
	recorder     SanitizeRecorder
	logger       *slog.Logger
}

// NewIngestService はIngestServiceの新しいインスタンスを生成する。
func NewIngestService(
	postRepo repository.PostRepository,
	pageRepo repository.PageRepository,
	categoryRepo repository.CategoryRepository,
	authorRepo repository.AuthorRepository,
	mediaRepo repository.MediaRepository,
	sanitizer HTMLSanitizer,
	recorder SanitizeRecorder,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		postRepo:     postRepo,
		pageRepo:     pageRepo,
		categoryRepo: categoryRepo,
		authorRepo:   authorRepo,
		mediaRepo:    mediaRepo,
		sanitizer:    sanitizer,
		textPolicy:   bluemonday.StrictPolicy(),
		recorder:     recorder,
		logger:       logger,
	}
}

// UpsertPosts は投稿をサニタイズしてUPSERTする。
// 戻り値は挿入数、更新数、エラー。不正スラッグや非公開ステータスの
// 投稿は警告ログとともにスキップされ、エラーにはしない。
func (s *IngestService) UpsertPosts(ctx context.Context, posts []wordpress.Post) (inserted int, updated int, err error) {
	now := time.Now()

	for _, wp := range posts {
		if wp.Status != string(model.PostStatusPublish) {
			continue
		}
		if !sanitize.IsValidSlug(wp.Slug) {
			s.logger.Warn("不正なスラッグの投稿をスキップします",
				slog.Int64("wp_id", wp.ID),
				slog.String("slug", wp.Slug),
			)
			continue
		}

		title := s.sanitizer.SanitizeInline(wp.Title.Rendered)
		contentHTML, report := s.sanitizer.SanitizeWithReport(wp.Content.Rendered)
		excerptHTML := s.sanitizer.Sanitize(wp.Excerpt.Rendered)
		excerptText := s.plainText(wp.Excerpt.Rendered)
		contentHash := computeContentHash(wp.Title.Rendered, wp.Content.Rendered, wp.Modified)

		if s.recorder != nil {
			s.recorder.RecordSanitize(string(model.SyncResourcePosts), report)
		}
		if report.BlockedEmbeds > 0 {
			s.logger.Warn("許可されていない埋め込みをブロックしました",
				slog.Int64("wp_id", wp.ID),
				slog.String("slug", wp.Slug),
				slog.Int("blocked_embeds", report.BlockedEmbeds),
			)
		}

		existing, findErr := s.postRepo.FindByWPID(ctx, wp.ID)
		if findErr != nil {
			return inserted, updated, fmt.Errorf("投稿の同一性判定に失敗: %w", findErr)
		}

		// 変更がない投稿はスキップして書き込みを節約する
		if existing != nil && existing.ContentHash == contentHash && existing.Slug == wp.Slug {
			existing.SyncedAt = now
			if updateErr := s.postRepo.Update(ctx, existing); updateErr != nil {
				return inserted, updated, fmt.Errorf("投稿の同期日時更新に失敗: %w", updateErr)
			}
			continue
		}

		publishedAt := s.parseTimeOr(wp.Date, now, wp.ID, "date_gmt")
		modifiedAt := s.parseTimeOr(wp.Modified, now, wp.ID, "modified_gmt")

		post := &model.Post{
			WPID:              wp.ID,
			Slug:              wp.Slug,
			Title:             title,
			ContentHTML:       contentHTML,
			ExcerptHTML:       excerptHTML,
			ExcerptText:       excerptText,
			Link:              wp.Link,
			Status:            model.PostStatus(wp.Status),
			AuthorWPID:        wp.Author,
			CategoryWPIDs:     wp.Categories,
			FeaturedMediaWPID: wp.FeaturedMedia,
			ContentHash:       contentHash,
			PublishedAt:       publishedAt,
			ModifiedAt:        modifiedAt,
			SyncedAt:          now,
			UpdatedAt:         now,
		}

		if existing != nil {
			post.ID = existing.ID
			post.CreatedAt = existing.CreatedAt
			if updateErr := s.postRepo.Update(ctx, post); updateErr != nil {
				return inserted, updated, fmt.Errorf("投稿の更新に失敗: %w", updateErr)
			}
			updated++
		} else {
			post.ID = uuid.New().String()
			post.CreatedAt = now
			if createErr := s.postRepo.Create(ctx, post); createErr != nil {
				return inserted, updated, fmt.Errorf("投稿の挿入に失敗: %w", createErr)
			}
			inserted++
		}
	}

	s.logger.Info("投稿UPSERT完了",
		slog.Int("records", len(posts)),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
	)

	return inserted, updated, nil
}

// UpsertPages は固定ページをサニタイズしてUPSERTする。
func (s *IngestService) UpsertPages(ctx context.Context, pages []wordpress.Page) (inserted int, updated int, err error) {
	now := time.Now()

	for _, wp := range pages {
		if wp.Status != string(model.PostStatusPublish) {
			continue
		}
		if !sanitize.IsValidSlug(wp.Slug) {
			s.logger.Warn("不正なスラッグの固定ページをスキップします",
				slog.Int64("wp_id", wp.ID),
				slog.String("slug", wp.Slug),
			)
			continue
		}

		title := s.sanitizer.SanitizeInline(wp.Title.Rendered)
		contentHTML, report := s.sanitizer.SanitizeWithReport(wp.Content.Rendered)
		contentHash := computeContentHash(wp.Title.Rendered, wp.Content.Rendered, wp.Modified)

		if s.recorder != nil {
			s.recorder.RecordSanitize(string(model.SyncResourcePages), report)
		}

		existing, findErr := s.pageRepo.FindByWPID(ctx, wp.ID)
		if findErr != nil {
			return inserted, updated, fmt.Errorf("固定ページの同一性判定に失敗: %w", findErr)
		}

		if existing != nil && existing.ContentHash == contentHash && existing.Slug == wp.Slug {
			existing.SyncedAt = now
			if updateErr := s.pageRepo.Update(ctx, existing); updateErr != nil {
				return inserted, updated, fmt.Errorf("固定ページの同期日時更新に失敗: %w", updateErr)
			}
			continue
		}

		page := &model.Page{
			WPID:        wp.ID,
			Slug:        wp.Slug,
			Title:       title,
			ContentHTML: contentHTML,
			Link:        wp.Link,
			Status:      model.PostStatus(wp.Status),
			ParentWPID:  wp.Parent,
			MenuOrder:   wp.Order,
			ContentHash: contentHash,
			ModifiedAt:  s.parseTimeOr(wp.Modified, now, wp.ID, "modified_gmt"),
			SyncedAt:    now,
			UpdatedAt:   now,
		}

		if existing != nil {
			page.ID = existing.ID
			page.CreatedAt = existing.CreatedAt
			if updateErr := s.pageRepo.Update(ctx, page); updateErr != nil {
				return inserted, updated, fmt.Errorf("固定ページの更新に失敗: %w", updateErr)
			}
			updated++
		} else {
			page.ID = uuid.New().String()
			page.CreatedAt = now
			if createErr := s.pageRepo.Create(ctx, page); createErr != nil {
				return inserted, updated, fmt.Errorf("固定ページの挿入に失敗: %w", createErr)
			}
			inserted++
		}
	}

	s.logger.Info("固定ページUPSERT完了",
		slog.Int("records", len(pages)),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
	)

	return inserted, updated, nil
}

// UpsertCategories はカテゴリをサニタイズしてUPSERTする。
func (s *IngestService) UpsertCategories(ctx context.Context, categories []wordpress.Category) (inserted int, updated int, err error) {
	now := time.Now()

	for _, wp := range categories {
		if !sanitize.IsValidSlug(wp.Slug) {
			s.logger.Warn("不正なスラッグのカテゴリをスキップします",
				slog.Int64("wp_id", wp.ID),
				slog.String("slug", wp.Slug),
			)
			continue
		}

		category := &model.Category{
			WPID:        wp.ID,
			Slug:        wp.Slug,
			Name:        s.plainText(wp.Name),
			Description: s.sanitizer.Sanitize(wp.Description),
			ParentWPID:  wp.Parent,
			Count:       wp.Count,
			SyncedAt:    now,
		}

		existing, findErr := s.categoryRepo.FindByWPID(ctx, wp.ID)
		if findErr != nil {
			return inserted, updated, fmt.Errorf("カテゴリの同一性判定に失敗: %w", findErr)
		}

		if existing != nil {
			category.ID = existing.ID
			if updateErr := s.categoryRepo.Update(ctx, category); updateErr != nil {
				return inserted, updated, fmt.Errorf("カテゴリの更新に失敗: %w", updateErr)
			}
			updated++
		} else {
			category.ID = uuid.New().String()
			if createErr := s.categoryRepo.Create(ctx, category); createErr != nil {
				return inserted, updated, fmt.Errorf("カテゴリの挿入に失敗: %w", createErr)
			}
			inserted++
		}
	}

	return inserted, updated, nil
}

// UpsertAuthors は著者をサニタイズしてUPSERTする。
func (s *IngestService) UpsertAuthors(ctx context.Context, authors []wordpress.Author) (inserted int, updated int, err error) {
	now := time.Now()

	for _, wp := range authors {
		author := &model.Author{
			WPID:        wp.ID,
			Slug:        wp.Slug,
			Name:        s.plainText(wp.Name),
			Description: s.sanitizer.Sanitize(wp.Description),
			AvatarURL:   largestAvatarURL(wp.AvatarURLs),
			SyncedAt:    now,
		}

		existing, findErr := s.authorRepo.FindByWPID(ctx, wp.ID)
		if findErr != nil {
			return inserted, updated, fmt.Errorf("著者の同一性判定に失敗: %w", findErr)
		}

		if existing != nil {
			author.ID = existing.ID
			if updateErr := s.authorRepo.Update(ctx, author); updateErr != nil {
				return inserted, updated, fmt.Errorf("著者の更新に失敗: %w", updateErr)
			}
			updated++
		} else {
			author.ID = uuid.New().String()
			if createErr := s.authorRepo.Create(ctx, author); createErr != nil {
				return inserted, updated, fmt.Errorf("著者の挿入に失敗: %w", createErr)
			}
			inserted++
		}
	}

	return inserted, updated, nil
}

// UpsertMedia はメディアをサニタイズしてUPSERTする。
func (s *IngestService) UpsertMedia(ctx context.Context, items []wordpress.Media) (inserted int, updated int, err error) {
	now := time.Now()

	for _, wp := range items {
		media := &model.Media{
			WPID:      wp.ID,
			Slug:      wp.Slug,
			Title:     s.sanitizer.SanitizeInline(wp.Title.Rendered),
			AltText:   s.plainText(wp.AltText),
			SourceURL: wp.SourceURL,
			MimeType:  wp.MimeType,
			Width:     wp.MediaDetails.Width,
			Height:    wp.MediaDetails.Height,
			SyncedAt:  now,
		}

		existing, findErr := s.mediaRepo.FindByWPID(ctx, wp.ID)
		if findErr != nil {
			return inserted, updated, fmt.Errorf("メディアの同一性判定に失敗: %w", findErr)
		}

		if existing != nil {
			media.ID = existing.ID
			if updateErr := s.mediaRepo.Update(ctx, media); updateErr != nil {
				return inserted, updated, fmt.Errorf("メディアの更新に失敗: %w", updateErr)
			}
			updated++
		} else {
			media.ID = uuid.New().String()
			if createErr := s.mediaRepo.Create(ctx, media); createErr != nil {
				return inserted, updated, fmt.Errorf("メディアの挿入に失敗: %w", createErr)
			}
			inserted++
		}
	}

	return inserted, updated, nil
}

// plainText はHTMLからタグを全て除去したプレーンテキストを返す。
// meta descriptionやカテゴリ名など、HTMLを一切許容しない出力先で使用する。
func (s *IngestService) plainText(fragment string) string {
	stripped := s.textPolicy.Sanitize(fragment)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// parseTimeOr はWordPressの日時文字列をパースし、失敗時はfallbackを返す。
func (s *IngestService) parseTimeOr(raw string, fallback time.Time, wpID int64, field string) time.Time {
	t, err := wordpress.ParseTime(raw)
	if err != nil {
		s.logger.Warn("日時のパースに失敗したため現在時刻を使用します",
			slog.Int64("wp_id", wpID),
			slog.String("field", field),
			slog.String("value", raw),
		)
		return fallback
	}
	return t
}

// largestAvatarURL はavatar_urlsの中で最大サイズのURLを返す。
// WordPressはサイズ（ピクセル数の文字列）をキーとしたマップを返す。
func largestAvatarURL(urls map[string]string) string {
	best := ""
	bestSize := -1
	for size, u := range urls {
		n := 0
		for _, r := range size {
			if r < '0' || r > '9' {
				n = -1
				break
			}
			n = n*10 + int(r-'0')
		}
		if n > bestSize {
			bestSize = n
			best = u
		}
	}
	return best
}

// computeContentHash はサニタイズ前のタイトル・本文・更新日時のSHA-256ハッシュを計算する。
// アップストリーム側の変更検出に使用する。
func computeContentHash(title, content, modified string) string {
	data := fmt.Sprintf("%s|%s|%s", title, content, modified)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
