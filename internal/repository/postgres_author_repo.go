package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresAuthorRepo はPostgreSQLを使用した著者リポジトリ。
type PostgresAuthorRepo struct {
	db *sql.DB
}

// NewPostgresAuthorRepo はPostgresAuthorRepoを生成する。
func NewPostgresAuthorRepo(db *sql.DB) *PostgresAuthorRepo {
	return &PostgresAuthorRepo{db: db}
}

const authorColumns = `id, wp_id, slug, name, description, avatar_url, synced_at`

// scanAuthor は1行分の著者をスキャンする。
func scanAuthor(scan func(dest ...any) error) (*model.Author, error) {
	author := &model.Author{}
	var description, avatarURL sql.NullString

	err := scan(
		&author.ID, &author.WPID, &author.Slug, &author.Name,
		&description, &avatarURL, &author.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	author.Description = nullStringValue(description)
	author.AvatarURL = nullStringValue(avatarURL)

	return author, nil
}

// FindByWPID はWordPress側IDで著者を検索する。見つからない場合はnilを返す。
func (r *PostgresAuthorRepo) FindByWPID(ctx context.Context, wpID int64) (*model.Author, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE wp_id = $1`,
		wpID,
	)

	author, err := scanAuthor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wp_id による著者の検索に失敗しました: %w", err)
	}
	return author, nil
}

// List は全著者を名前昇順で取得する。
func (r *PostgresAuthorRepo) List(ctx context.Context) ([]*model.Author, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+authorColumns+` FROM authors ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("著者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var authors []*model.Author
	for rows.Next() {
		author, err := scanAuthor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("著者行の読み取りに失敗しました: %w", err)
		}
		authors = append(authors, author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("著者一覧の走査に失敗しました: %w", err)
	}

	return authors, nil
}

// Create は新規著者を作成する。
func (r *PostgresAuthorRepo) Create(ctx context.Context, author *model.Author) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authors (id, wp_id, slug, name, description, avatar_url, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		author.ID, author.WPID, author.Slug, author.Name,
		nullString(author.Description), nullString(author.AvatarURL), author.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("著者の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存著者を上書き更新する。
func (r *PostgresAuthorRepo) Update(ctx context.Context, author *model.Author) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE authors SET
		    slug = $2, name = $3, description = $4, avatar_url = $5, synced_at = $6
		 WHERE wp_id = $1`,
		author.WPID, author.Slug, author.Name,
		nullString(author.Description), nullString(author.AvatarURL), author.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("著者の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteNotSyncedSince は指定日時より前に最終同期された著者を削除する。
func (r *PostgresAuthorRepo) DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM authors WHERE synced_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("取り残し著者の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ AuthorRepository = (*PostgresAuthorRepo)(nil)
