// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByWPID はWordPress側IDで投稿を検索する。見つからない場合はnilを返す。
	// 同期時の同一性判定に使用する。
	FindByWPID(ctx context.Context, wpID int64) (*model.Post, error)

	// FindBySlug はスラッグで投稿を検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)

	// List は公開済み投稿の一覧を(published_at, id)降順で取得する。
	// categoryWPIDが0より大きい場合はそのカテゴリの投稿のみを返す。
	// cursorがゼロ値の場合は先頭から取得する。published_atは秒精度で
	// 衝突しうるため、cursorIDを含めた行比較でページ境界の重複と
	// 取りこぼしを防ぐ。
	List(ctx context.Context, categoryWPID int64, cursor time.Time, cursorID string, limit int) ([]*model.Post, error)

	// Create は新規投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は既存投稿を上書き更新する。履歴は保持しない。
	Update(ctx context.Context, post *model.Post) error

	// DeleteNotSyncedSince は指定日時より前に最終同期された投稿を削除する。
	// 差分取得ではアップストリーム側の削除を検出できないため、
	// フル同期の完了後に取り残された行を回収する。削除件数を返す。
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// PageRepository は固定ページデータの永続化インターフェース。
type PageRepository interface {
	// FindByWPID はWordPress側IDで固定ページを検索する。見つからない場合はnilを返す。
	FindByWPID(ctx context.Context, wpID int64) (*model.Page, error)

	// FindBySlug はスラッグで固定ページを検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Page, error)

	// List は公開済み固定ページの一覧をmenu_order昇順で取得する。
	List(ctx context.Context) ([]*model.Page, error)

	// Create は新規固定ページを作成する。
	Create(ctx context.Context, page *model.Page) error

	// Update は既存固定ページを上書き更新する。
	Update(ctx context.Context, page *model.Page) error

	// DeleteNotSyncedSince は指定日時より前に最終同期された固定ページを削除する。
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// FindByWPID はWordPress側IDでカテゴリを検索する。見つからない場合はnilを返す。
	FindByWPID(ctx context.Context, wpID int64) (*model.Category, error)

	// FindBySlug はスラッグでカテゴリを検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)

	// List は全カテゴリを名前昇順で取得する。
	List(ctx context.Context) ([]*model.Category, error)

	// Create は新規カテゴリを作成する。
	Create(ctx context.Context, category *model.Category) error

	// Update は既存カテゴリを上書き更新する。
	Update(ctx context.Context, category *model.Category) error

	// DeleteNotSyncedSince は指定日時より前に最終同期されたカテゴリを削除する。
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// AuthorRepository は著者データの永続化インターフェース。
type AuthorRepository interface {
	// FindByWPID はWordPress側IDで著者を検索する。見つからない場合はnilを返す。
	FindByWPID(ctx context.Context, wpID int64) (*model.Author, error)

	// List は全著者を名前昇順で取得する。
	List(ctx context.Context) ([]*model.Author, error)

	// Create は新規著者を作成する。
	Create(ctx context.Context, author *model.Author) error

	// Update は既存著者を上書き更新する。
	Update(ctx context.Context, author *model.Author) error

	// DeleteNotSyncedSince は指定日時より前に最終同期された著者を削除する。
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// MediaRepository はメディアデータの永続化インターフェース。
type MediaRepository interface {
	// FindByWPID はWordPress側IDでメディアを検索する。見つからない場合はnilを返す。
	FindByWPID(ctx context.Context, wpID int64) (*model.Media, error)

	// Create は新規メディアを作成する。
	Create(ctx context.Context, media *model.Media) error

	// Update は既存メディアを上書き更新する。
	Update(ctx context.Context, media *model.Media) error

	// DeleteNotSyncedSince は指定日時より前に最終同期されたメディアを削除する。
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// SyncStateRepository はリソース種別ごとの同期状態の永続化インターフェース。
type SyncStateRepository interface {
	// Find は指定リソースの同期状態を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, resource model.SyncResource) (*model.SyncState, error)

	// Upsert は同期状態を冪等にUPSERTする。
	Upsert(ctx context.Context, state *model.SyncState) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
