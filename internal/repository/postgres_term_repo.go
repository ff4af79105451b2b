package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

const categoryColumns = `id, wp_id, slug, name, description, parent_wp_id, count, synced_at`

// scanCategory は1行分のカテゴリをスキャンする。
func scanCategory(scan func(dest ...any) error) (*model.Category, error) {
	category := &model.Category{}
	var description sql.NullString

	err := scan(
		&category.ID, &category.WPID, &category.Slug, &category.Name,
		&description, &category.ParentWPID, &category.Count, &category.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	category.Description = nullStringValue(description)

	return category, nil
}

// FindByWPID はWordPress側IDでカテゴリを検索する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByWPID(ctx context.Context, wpID int64) (*model.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE wp_id = $1`,
		wpID,
	)

	category, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wp_id によるカテゴリの検索に失敗しました: %w", err)
	}
	return category, nil
}

// FindBySlug はスラッグでカテゴリを検索する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`,
		slug,
	)

	category, err := scanCategory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slug によるカテゴリの検索に失敗しました: %w", err)
	}
	return category, nil
}

// List は全カテゴリを名前昇順で取得する。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		category, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
	}

	return categories, nil
}

// Create は新規カテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, wp_id, slug, name, description, parent_wp_id, count, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		category.ID, category.WPID, category.Slug, category.Name,
		nullString(category.Description), category.ParentWPID, category.Count, category.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存カテゴリを上書き更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, category *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET
		    slug = $2, name = $3, description = $4, parent_wp_id = $5,
		    count = $6, synced_at = $7
		 WHERE wp_id = $1`,
		category.WPID, category.Slug, category.Name,
		nullString(category.Description), category.ParentWPID,
		category.Count, category.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteNotSyncedSince は指定日時より前に最終同期されたカテゴリを削除する。
func (r *PostgresCategoryRepo) DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE synced_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("取り残しカテゴリの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
