package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresPageRepo はPostgreSQLを使用した固定ページリポジトリ。
type PostgresPageRepo struct {
	db *sql.DB
}

// NewPostgresPageRepo はPostgresPageRepoを生成する。
func NewPostgresPageRepo(db *sql.DB) *PostgresPageRepo {
	return &PostgresPageRepo{db: db}
}

const pageColumns = `id, wp_id, slug, title, content_html, link, status,
	        parent_wp_id, menu_order, content_hash, modified_at, synced_at,
	        created_at, updated_at`

// scanPage は1行分の固定ページをスキャンする。
func scanPage(scan func(dest ...any) error) (*model.Page, error) {
	page := &model.Page{}
	var link, contentHash sql.NullString

	err := scan(
		&page.ID, &page.WPID, &page.Slug, &page.Title, &page.ContentHTML,
		&link, &page.Status, &page.ParentWPID, &page.MenuOrder,
		&contentHash, &page.ModifiedAt, &page.SyncedAt,
		&page.CreatedAt, &page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	page.Link = nullStringValue(link)
	page.ContentHash = nullStringValue(contentHash)

	return page, nil
}

// FindByWPID はWordPress側IDで固定ページを検索する。見つからない場合はnilを返す。
func (r *PostgresPageRepo) FindByWPID(ctx context.Context, wpID int64) (*model.Page, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE wp_id = $1`,
		wpID,
	)

	page, err := scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wp_id による固定ページの検索に失敗しました: %w", err)
	}
	return page, nil
}

// FindBySlug はスラッグで固定ページを検索する。見つからない場合はnilを返す。
func (r *PostgresPageRepo) FindBySlug(ctx context.Context, slug string) (*model.Page, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE slug = $1`,
		slug,
	)

	page, err := scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slug による固定ページの検索に失敗しました: %w", err)
	}
	return page, nil
}

// List は公開済み固定ページの一覧をmenu_order昇順で取得する。
func (r *PostgresPageRepo) List(ctx context.Context) ([]*model.Page, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE status = 'publish'
		 ORDER BY menu_order ASC, slug ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("固定ページ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		page, err := scanPage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("固定ページ行の読み取りに失敗しました: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("固定ページ一覧の走査に失敗しました: %w", err)
	}

	return pages, nil
}

// Create は新規固定ページを作成する。
func (r *PostgresPageRepo) Create(ctx context.Context, page *model.Page) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pages (id, wp_id, slug, title, content_html, link, status,
		                    parent_wp_id, menu_order, content_hash, modified_at, synced_at,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		page.ID, page.WPID, page.Slug, page.Title, page.ContentHTML,
		nullString(page.Link), page.Status, page.ParentWPID, page.MenuOrder,
		nullString(page.ContentHash), page.ModifiedAt, page.SyncedAt,
		page.CreatedAt, page.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("固定ページの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存固定ページを上書き更新する。
func (r *PostgresPageRepo) Update(ctx context.Context, page *model.Page) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pages SET
		    slug = $2, title = $3, content_html = $4, link = $5, status = $6,
		    parent_wp_id = $7, menu_order = $8, content_hash = $9,
		    modified_at = $10, synced_at = $11, updated_at = $12
		 WHERE wp_id = $1`,
		page.WPID, page.Slug, page.Title, page.ContentHTML,
		nullString(page.Link), page.Status, page.ParentWPID, page.MenuOrder,
		nullString(page.ContentHash), page.ModifiedAt, page.SyncedAt, page.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("固定ページの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteNotSyncedSince は指定日時より前に最終同期された固定ページを削除する。
func (r *PostgresPageRepo) DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pages WHERE synced_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("取り残し固定ページの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ PageRepository = (*PostgresPageRepo)(nil)
