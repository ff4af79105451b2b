package sanitize

import (
	"net/url"
	"strings"
)

// defaultEmbedHosts は埋め込みiframeのsrcとして信頼する動画プラットフォームの
// ホスト名。完全一致で照合するため、サブドメインは個別に列挙する。
var defaultEmbedHosts = []string{
	"www.youtube.com",
	"youtube.com",
	"www.youtube-nocookie.com",
	"player.vimeo.com",
	"vimeo.com",
}

// EmbedAllowList はiframeの埋め込み元ホストの固定許可リスト。
// LinkClassifierと異なり、パース失敗時は必ずブロックする（フェイルクローズ）。
type EmbedAllowList struct {
	hosts map[string]struct{}
}

// NewEmbedAllowList は指定ホストの許可リストを構築する。
// ホストを指定しない場合はデフォルトの動画プラットフォーム集合を使う。
func NewEmbedAllowList(hosts ...string) *EmbedAllowList {
	if len(hosts) == 0 {
		hosts = defaultEmbedHosts
	}
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(h)] = struct{}{}
	}
	return &EmbedAllowList{hosts: set}
}

// IsAllowed はiframeのsrcが許可された埋め込み元かを判定する。
//
// srcを絶対URLとしてパースし、httpsスキームであること、ホスト名が
// 許可リストに文字列として完全一致することを要求する。部分一致や
// サブドメインマッチは行わない（evil.youtube.com は許可リストに
// 載っていないので拒否される）。空・相対・パース不能なsrcはすべて拒否。
func (e *EmbedAllowList) IsAllowed(src string) bool {
	allowed, _ := e.Check(src)
	return allowed
}

// Check はIsAllowedと同じ判定を行い、ブロック時の理由を併せて返す。
// 理由はサニタイザがプレースホルダ要素のdata属性に埋め込むために使う。
func (e *EmbedAllowList) Check(src string) (bool, string) {
	src = strings.TrimSpace(src)
	if src == "" {
		return false, "missing-src"
	}

	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() {
		return false, "invalid-src"
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return false, "disallowed-scheme"
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false, "invalid-src"
	}

	if _, ok := e.hosts[host]; !ok {
		return false, "disallowed-host"
	}
	return true, ""
}
