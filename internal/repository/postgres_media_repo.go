package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresMediaRepo はPostgreSQLを使用したメディアリポジトリ。
type PostgresMediaRepo struct {
	db *sql.DB
}

// NewPostgresMediaRepo はPostgresMediaRepoを生成する。
func NewPostgresMediaRepo(db *sql.DB) *PostgresMediaRepo {
	return &PostgresMediaRepo{db: db}
}

const mediaColumns = `id, wp_id, slug, title, alt_text, source_url, mime_type, width, height, synced_at`

// scanMedia は1行分のメディアをスキャンする。
func scanMedia(scan func(dest ...any) error) (*model.Media, error) {
	media := &model.Media{}
	var title, altText, mimeType sql.NullString

	err := scan(
		&media.ID, &media.WPID, &media.Slug, &title, &altText,
		&media.SourceURL, &mimeType, &media.Width, &media.Height, &media.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	media.Title = nullStringValue(title)
	media.AltText = nullStringValue(altText)
	media.MimeType = nullStringValue(mimeType)

	return media, nil
}

// FindByWPID はWordPress側IDでメディアを検索する。見つからない場合はnilを返す。
func (r *PostgresMediaRepo) FindByWPID(ctx context.Context, wpID int64) (*model.Media, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE wp_id = $1`,
		wpID,
	)

	media, err := scanMedia(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wp_id によるメディアの検索に失敗しました: %w", err)
	}
	return media, nil
}

// Create は新規メディアを作成する。
func (r *PostgresMediaRepo) Create(ctx context.Context, media *model.Media) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media (id, wp_id, slug, title, alt_text, source_url, mime_type, width, height, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		media.ID, media.WPID, media.Slug, nullString(media.Title),
		nullString(media.AltText), media.SourceURL, nullString(media.MimeType),
		media.Width, media.Height, media.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("メディアの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存メディアを上書き更新する。
func (r *PostgresMediaRepo) Update(ctx context.Context, media *model.Media) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE media SET
		    slug = $2, title = $3, alt_text = $4, source_url = $5,
		    mime_type = $6, width = $7, height = $8, synced_at = $9
		 WHERE wp_id = $1`,
		media.WPID, media.Slug, nullString(media.Title), nullString(media.AltText),
		media.SourceURL, nullString(media.MimeType), media.Width, media.Height,
		media.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("メディアの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteNotSyncedSince は指定日時より前に最終同期されたメディアを削除する。
func (r *PostgresMediaRepo) DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM media WHERE synced_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("取り残しメディアの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ MediaRepository = (*PostgresMediaRepo)(nil)
