package sanitize

import (
	"net/url"
	"strings"
)

// DefaultSiteOrigin はサイトオリジンが未設定・不正な場合に使用する安全なデフォルト。
// 分類処理自体は起動を妨げてはならないため、失敗ではなくデフォルト代入で回復する。
const DefaultSiteOrigin = "http://localhost:3000"

// LinkClassifier はhref/src文字列を設定済みのサイトオリジンと照合し、
// 内部リンクか外部リンクかを判定する。
//
// 判定はパース済みURLのホスト名コンポーネントのみで行う。生のhref文字列への
// 部分一致・前方一致は、パス内ドメイン（evil.com/example.com）、
// userinfo偽装（example.com:pw@evil.com）、サブドメイン偽装
// （example.com.evil.com）などのバイパスを許すため決して行わない。
type LinkClassifier struct {
	base     *url.URL
	siteHost string
}

// NewLinkClassifier はサイトオリジンからLinkClassifierを構築する。
// siteOriginが空またはパース不能な場合はDefaultSiteOriginで代替する。
// スキームを持たない "example.com" のような指定はhttpsとして解釈する。
func NewLinkClassifier(siteOrigin string) *LinkClassifier {
	origin := strings.TrimSpace(siteOrigin)
	if origin == "" {
		origin = DefaultSiteOrigin
	}
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}

	base, err := url.Parse(origin)
	if err != nil || base.Hostname() == "" {
		base, _ = url.Parse(DefaultSiteOrigin)
	}

	return &LinkClassifier{
		base:     base,
		siteHost: strings.ToLower(base.Hostname()),
	}
}

// SiteHost は分類に使用しているサイトのホスト名を返す。
func (c *LinkClassifier) SiteHost() string {
	return c.siteHost
}

// IsExternal はアンカーのhrefとtargetから外部リンクかどうかを判定する。
//
// 判定規則:
//   - target="_blank" は hrefによらず常に外部扱い。新規タブ遷移は同一サイトでも
//     window.opener経由のリスクを持つため、意図的に保守側へ倒す。
//   - 空のhref、"/"始まりのルート相対パス、"#"始まりのページ内フラグメント、
//     mailto:/tel: は内部扱い。
//   - それ以外はサイトオリジンを基底として解決し、解決後のホスト名を
//     大文字小文字を無視して完全一致で比較する。サブドメイン違いは外部、
//     ポート違いは内部（ホスト名のみ比較するため）。
//   - プロトコル相対（//host/path）は絶対URLと同様にホスト名を取り出して比較する。
//   - パース不能なhrefは外部扱い（rel属性が1つ余分に付くだけで実害がない）。
func (c *LinkClassifier) IsExternal(href, target string) bool {
	if target == "_blank" {
		return true
	}

	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	if strings.HasPrefix(href, "#") {
		return false
	}
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return false
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return false
	}

	u, err := url.Parse(href)
	if err != nil {
		return true
	}

	resolved := c.base.ResolveReference(u)
	host := resolved.Hostname()
	if host == "" {
		return true
	}

	return !strings.EqualFold(host, c.siteHost)
}

// IsValidSlug はCMS由来のスラッグが内部ルート構築に安全に使えるかを検証する。
//
// 拒否するもの: 空・空白のみ、".." を含む、"/" 始まり、"\" を含む、NUL文字を含む。
// それ以外（他の記号、Unicode、"."始まり）は受け入れる。検証に失敗した場合、
// 呼び出し側は不正なルートを組み立てずに安全なデフォルトへフォールバックすること。
func IsValidSlug(slug string) bool {
	if strings.TrimSpace(slug) == "" {
		return false
	}
	if strings.Contains(slug, "..") {
		return false
	}
	if strings.HasPrefix(slug, "/") {
		return false
	}
	if strings.Contains(slug, `\`) {
		return false
	}
	if strings.ContainsRune(slug, 0) {
		return false
	}
	return true
}
