package model

import "time"

// Page はWordPressの固定ページを表す。
// 投稿と同様、HTMLフィールドはインジェスト時にサニタイズ済み。
type Page struct {
	ID          string
	WPID        int64
	Slug        string
	Title       string // サニタイズ済み（インラインポリシー）
	ContentHTML string // サニタイズ済みHTML
	Link        string
	Status      PostStatus
	ParentWPID  int64
	MenuOrder   int
	ContentHash string
	ModifiedAt  time.Time
	SyncedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category はWordPressのカテゴリを表す。
type Category struct {
	ID          string
	WPID        int64
	Slug        string
	Name        string // タグ除去済みプレーンテキスト
	Description string // サニタイズ済みHTML
	ParentWPID  int64
	Count       int
	SyncedAt    time.Time
}

// Author はWordPressの著者（ユーザー）を表す。
type Author struct {
	ID          string
	WPID        int64
	Slug        string
	Name        string // タグ除去済みプレーンテキスト
	Description string // サニタイズ済みHTML
	AvatarURL   string
	SyncedAt    time.Time
}

// Media はWordPressのメディア（添付ファイル）を表す。
type Media struct {
	ID        string
	WPID      int64
	Slug      string
	Title     string // サニタイズ済み（インラインポリシー）
	AltText   string // タグ除去済みプレーンテキスト
	SourceURL string
	MimeType  string
	Width     int
	Height    int
	SyncedAt  time.Time
}
