package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, wp_id, slug, title, content_html, excerpt_html, excerpt_text,
	        link, status, author_wp_id, category_wp_ids, featured_media_wp_id,
	        content_hash, published_at, modified_at, synced_at, created_at, updated_at`

// scanPost は1行分の投稿をスキャンする。
func scanPost(scan func(dest ...any) error) (*model.Post, error) {
	post := &model.Post{}
	var excerptHTML, excerptText, link, contentHash sql.NullString
	var categoryWPIDs pq.Int64Array

	err := scan(
		&post.ID, &post.WPID, &post.Slug, &post.Title, &post.ContentHTML,
		&excerptHTML, &excerptText, &link, &post.Status,
		&post.AuthorWPID, &categoryWPIDs, &post.FeaturedMediaWPID,
		&contentHash, &post.PublishedAt, &post.ModifiedAt, &post.SyncedAt,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.ExcerptHTML = nullStringValue(excerptHTML)
	post.ExcerptText = nullStringValue(excerptText)
	post.Link = nullStringValue(link)
	post.ContentHash = nullStringValue(contentHash)
	post.CategoryWPIDs = []int64(categoryWPIDs)

	return post, nil
}

// FindByWPID はWordPress側IDで投稿を検索する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByWPID(ctx context.Context, wpID int64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE wp_id = $1`,
		wpID,
	)

	post, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wp_id による投稿の検索に失敗しました: %w", err)
	}
	return post, nil
}

// FindBySlug はスラッグで投稿を検索する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = $1`,
		slug,
	)

	post, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slug による投稿の検索に失敗しました: %w", err)
	}
	return post, nil
}

// List は公開済み投稿の一覧を(published_at, id)降順で取得する。
// カーソルベースページネーションを使用する。cursorがゼロ値の場合は先頭から取得する。
// cursorIDが空の場合はpublished_atのみの比較にフォールバックする。
func (r *PostgresPostRepo) List(ctx context.Context, categoryWPID int64, cursor time.Time, cursorID string, limit int) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = 'publish'`
	args := []interface{}{}
	argIndex := 1

	if categoryWPID > 0 {
		query += fmt.Sprintf(" AND $%d = ANY(category_wp_ids)", argIndex)
		args = append(args, categoryWPID)
		argIndex++
	}

	// published_atは秒精度で衝突しうるため、idを含めた行比較で
	// ページ境界の取りこぼしを防ぐ
	if !cursor.IsZero() {
		if cursorID != "" {
			query += fmt.Sprintf(" AND (published_at, id) < ($%d, $%d)", argIndex, argIndex+1)
			args = append(args, cursor, cursorID)
			argIndex += 2
		} else {
			query += fmt.Sprintf(" AND published_at < $%d", argIndex)
			args = append(args, cursor)
			argIndex++
		}
	}

	query += fmt.Sprintf(" ORDER BY published_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}

// Create は新規投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, wp_id, slug, title, content_html, excerpt_html, excerpt_text,
		                    link, status, author_wp_id, category_wp_ids, featured_media_wp_id,
		                    content_hash, published_at, modified_at, synced_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		post.ID, post.WPID, post.Slug, post.Title, post.ContentHTML,
		nullString(post.ExcerptHTML), nullString(post.ExcerptText), nullString(post.Link),
		post.Status, post.AuthorWPID, pq.Array(post.CategoryWPIDs), post.FeaturedMediaWPID,
		nullString(post.ContentHash), post.PublishedAt, post.ModifiedAt, post.SyncedAt,
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存投稿を上書き更新する。履歴は保持しない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET
		    slug = $2, title = $3, content_html = $4, excerpt_html = $5, excerpt_text = $6,
		    link = $7, status = $8, author_wp_id = $9, category_wp_ids = $10,
		    featured_media_wp_id = $11, content_hash = $12, published_at = $13,
		    modified_at = $14, synced_at = $15, updated_at = $16
		 WHERE wp_id = $1`,
		post.WPID, post.Slug, post.Title, post.ContentHTML,
		nullString(post.ExcerptHTML), nullString(post.ExcerptText), nullString(post.Link),
		post.Status, post.AuthorWPID, pq.Array(post.CategoryWPIDs), post.FeaturedMediaWPID,
		nullString(post.ContentHash), post.PublishedAt, post.ModifiedAt, post.SyncedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteNotSyncedSince は指定日時より前に最終同期された投稿を削除する。
func (r *PostgresPostRepo) DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE synced_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("取り残し投稿の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringを文字列に変換する。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
