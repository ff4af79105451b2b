// Package model はドメインモデルを定義する。
package model

import "time"

// Post はWordPressから取得しサニタイズ済みでキャッシュされた投稿を表す。
// Title・ContentHTML・ExcerptHTMLはインジェスト時にサニタイザを
// 通過しており、そのままプレゼンテーション層に渡せる。
type Post struct {
	ID               string
	WPID             int64
	Slug             string
	Title            string // サニタイズ済み（インラインポリシー）
	ContentHTML      string // サニタイズ済みHTML
	ExcerptHTML      string // サニタイズ済みHTML
	ExcerptText      string // タグ除去済みプレーンテキスト（meta description用）
	Link             string
	Status           PostStatus
	AuthorWPID       int64
	CategoryWPIDs    []int64
	FeaturedMediaWPID int64
	ContentHash      string
	PublishedAt      time.Time
	ModifiedAt       time.Time
	SyncedAt         time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PostStatus は投稿の公開状態を表す。
type PostStatus string

const (
	// PostStatusPublish は公開済みの投稿。
	PostStatusPublish PostStatus = "publish"
	// PostStatusDraft は下書きの投稿。公開APIには露出しない。
	PostStatusDraft PostStatus = "draft"
	// PostStatusPrivate は非公開の投稿。公開APIには露出しない。
	PostStatusPrivate PostStatus = "private"
)

// SyncResource は同期対象のWordPressリソース種別を表す。
type SyncResource string

const (
	// SyncResourcePosts は投稿リソース。
	SyncResourcePosts SyncResource = "posts"
	// SyncResourcePages は固定ページリソース。
	SyncResourcePages SyncResource = "pages"
	// SyncResourceCategories はカテゴリリソース。
	SyncResourceCategories SyncResource = "categories"
	// SyncResourceAuthors は著者リソース。
	SyncResourceAuthors SyncResource = "authors"
	// SyncResourceMedia はメディアリソース。
	SyncResourceMedia SyncResource = "media"
)

// SyncState はリソース種別ごとの同期カーソルとエラー状態を表す。
// 連続エラー数に応じて同期ワーカーがバックオフを適用する。
// LastFullSyncAtは直近で全件同期が完了した時刻。増分同期ではsynced_atが
// 更新されないレコードが残るため、クリーンアップはこの時刻より古い
// カットオフでのみ削除してよい。
type SyncState struct {
	Resource          SyncResource
	LastSyncedAt      time.Time
	LastFullSyncAt    time.Time
	NextSyncAt        time.Time
	ConsecutiveErrors int
	LastError         string
	UpdatedAt         time.Time
}
