package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, content, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodePageNotFound     = "PAGE_NOT_FOUND"
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	ErrCodeInvalidSlug      = "INVALID_SLUG"
	ErrCodeInvalidCursor    = "INVALID_CURSOR"
	ErrCodeUpstreamFetch    = "UPSTREAM_FETCH_FAILED"
	ErrCodeUpstreamParse    = "UPSTREAM_PARSE_FAILED"
	ErrCodeUpstreamBlocked  = "UPSTREAM_URL_BLOCKED"
)

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", slug),
		Category: "content",
		Action:   "スラッグを確認してください。",
	}
}

// NewPageNotFoundError は固定ページ未検出エラーを生成する。
func NewPageNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodePageNotFound,
		Message:  fmt.Sprintf("指定されたページが見つかりません: %s", slug),
		Category: "content",
		Action:   "スラッグを確認してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", slug),
		Category: "content",
		Action:   "カテゴリのスラッグを確認してください。",
	}
}

// NewInvalidSlugError は不正なスラッグエラーを生成する。
// パストラバーサル等の不正な文字列は内部ルートの構築前にここで弾く。
func NewInvalidSlugError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSlug,
		Message:  "スラッグの形式が不正です。",
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

// NewInvalidCursorError は不正なページネーションカーソルエラーを生成する。
func NewInvalidCursorError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Message:  "ページネーションカーソルの形式が不正です。",
		Category: "validation",
		Action:   "先頭ページから取得し直してください。",
	}
}

// NewUpstreamFetchError はWordPress APIの取得失敗エラーを生成する。
func NewUpstreamFetchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFetch,
		Message:  fmt.Sprintf("WordPress APIの取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamParseError はWordPress APIレスポンスの解析失敗エラーを生成する。
func NewUpstreamParseError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamParse,
		Message:  "WordPress APIレスポンスの解析に失敗しました。",
		Category: "upstream",
		Action:   "WordPress側のREST APIが有効か確認してください。",
	}
}

// NewUpstreamBlockedError はセキュリティポリシーによるURL拒否エラーを生成する。
func NewUpstreamBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamBlocked,
		Message:  "セキュリティポリシーにより、設定されたWordPress URLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "WP_API_BASEに公開されているWordPressサイトのURLを設定してください。",
	}
}
