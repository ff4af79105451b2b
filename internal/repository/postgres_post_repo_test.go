package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresPostRepoはPostRepositoryインターフェースを満たすことを検証
func TestPostgresPostRepo_ImplementsInterface(t *testing.T) {
	var _ PostRepository = (*PostgresPostRepo)(nil)
}

// NewPostgresPostRepoが正しく初期化されることを検証
func TestNewPostgresPostRepo_Initializes(t *testing.T) {
	repo := NewPostgresPostRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Postモデルのフィールドが正しく構築されることを検証
func TestPostgresPostRepo_PostModel_Fields(t *testing.T) {
	now := time.Now()
	post := &model.Post{
		ID:            "post-id-1",
		WPID:          42,
		Slug:          "hello-world",
		Title:         "はじめての投稿",
		ContentHTML:   "<p>本文</p>",
		Status:        model.PostStatusPublish,
		CategoryWPIDs: []int64{10, 11},
		PublishedAt:   now,
		ModifiedAt:    now,
		SyncedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if post.WPID != 42 {
		t.Errorf("post.WPID = %d, want 42", post.WPID)
	}
	if post.Status != model.PostStatusPublish {
		t.Errorf("post.Status = %q, want %q", post.Status, model.PostStatusPublish)
	}
	if len(post.CategoryWPIDs) != 2 {
		t.Errorf("len(CategoryWPIDs) = %d, want 2", len(post.CategoryWPIDs))
	}
}

// nullStringの空文字列とNULLの変換を検証
func TestNullString_Conversion(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("空文字列は NULL になるべき")
	}
	if ns := nullString("value"); !ns.Valid || ns.String != "value" {
		t.Errorf("nullString(\"value\") = %+v", ns)
	}

	if got := nullStringValue(sql.NullString{}); got != "" {
		t.Errorf("NULL は空文字列になるべきだが: %q", got)
	}
	if got := nullStringValue(sql.NullString{String: "value", Valid: true}); got != "value" {
		t.Errorf("nullStringValue = %q, want value", got)
	}
}
