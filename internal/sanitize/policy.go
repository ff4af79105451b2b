// Package sanitize はWordPressから取得した信頼できないHTMLの
// トラストバウンダリ処理を提供する。
//
// 許可リストベースのHTMLサニタイザ、内部/外部リンクの分類器、
// iframe埋め込み元の許可リスト、スラッグ検証で構成される。
// すべての判定は起動時に構築されるイミュータブルなポリシーデータに
// 基づいて行われ、構築後は並行呼び出しに対して安全である。
package sanitize

import "strings"

// Policy はサニタイザの許可リストを保持する。
// 許可されるタグ、タグごとの属性、URLスキームを宣言的なデータとして持ち、
// 条件分岐ではなくテーブル参照で判定する。構築後は変更しないこと。
type Policy struct {
	// allowedTags は出力に残すことを許可する要素名の集合。
	// ここに含まれない要素はサブツリーごと破棄される。
	allowedTags map[string]struct{}

	// allowedAttrs はタグ名ごとの許可属性集合。キー "*" は全タグ共通。
	allowedAttrs map[string]map[string]struct{}

	// wildcardAttrPrefixes はプレフィックス一致で許可する属性ファミリー
	// （aria-*, data-*）。リテラル属性名ではなくパターンである点に注意。
	wildcardAttrPrefixes []string

	// allowedSchemes はURL属性値に許可するグローバルなスキーム集合。
	allowedSchemes map[string]struct{}

	// allowedSchemesByTag はタグごとのスキーム上書き。
	// エントリが存在するタグではグローバル集合の代わりにこちらを使う。
	allowedSchemesByTag map[string]map[string]struct{}

	// urlAttrs はタグごとのURLを値として持つ属性名。
	// ここに挙がる属性のみスキーム検証の対象になる。
	urlAttrs map[string]map[string]struct{}
}

func newSet(keys ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// DefaultPolicy は投稿本文・固定ページ本文向けの標準ポリシーを返す。
//
// Gutenbergが生成する正当なマークアップ（見出し、表、リスト、メディア、
// 埋め込み、セマンティック要素）を保持しつつ、script/style/form系や
// イベントハンドラ属性、危険なURLスキームを除去する。
// タグや属性の追加は信頼面の拡大と等価なので、変更は意図的に行うこと。
func DefaultPolicy() *Policy {
	return &Policy{
		allowedTags: newSet(
			// ブロック要素・セクション
			"p", "div", "section", "article", "aside", "header", "footer",
			"main", "nav", "h1", "h2", "h3", "h4", "h5", "h6",
			"blockquote", "pre", "hr", "address", "figure", "figcaption",
			"details", "summary",
			// リスト
			"ul", "ol", "li", "dl", "dt", "dd",
			// インライン
			"a", "b", "strong", "i", "em", "u", "s", "del", "ins", "mark",
			"small", "sub", "sup", "span", "br", "wbr", "code", "kbd",
			"samp", "var", "abbr", "cite", "q", "time", "dfn", "bdi", "bdo",
			"ruby", "rt", "rp",
			// 表
			"table", "thead", "tbody", "tfoot", "tr", "th", "td",
			"caption", "colgroup", "col",
			// メディア・埋め込み
			"img", "picture", "source", "video", "audio", "track", "iframe",
		),
		allowedAttrs: map[string]map[string]struct{}{
			// 全タグ共通。style はいかなる許可リストにも含めない
			// （CSS expression系の攻撃も同時に無効化される）。
			"*":          newSet("id", "class", "lang", "dir", "title", "role"),
			"a":          newSet("href", "target", "rel"),
			"img":        newSet("src", "srcset", "sizes", "alt", "width", "height", "loading", "decoding"),
			"source":     newSet("src", "srcset", "sizes", "type", "media"),
			"video":      newSet("src", "poster", "width", "height", "controls", "loop", "muted", "playsinline", "preload"),
			"audio":      newSet("src", "controls", "loop", "muted", "preload"),
			"track":      newSet("src", "kind", "srclang", "label", "default"),
			"iframe":     newSet("src", "width", "height", "allow", "allowfullscreen", "loading", "frameborder", "referrerpolicy"),
			"blockquote": newSet("cite"),
			"q":          newSet("cite"),
			"del":        newSet("cite", "datetime"),
			"ins":        newSet("cite", "datetime"),
			"time":       newSet("datetime"),
			"ol":         newSet("start", "reversed", "type"),
			"li":         newSet("value"),
			"th":         newSet("colspan", "rowspan", "scope", "headers"),
			"td":         newSet("colspan", "rowspan", "headers"),
			"col":        newSet("span"),
			"colgroup":   newSet("span"),
		},
		wildcardAttrPrefixes: []string{"aria-", "data-"},
		allowedSchemes:       newSet("http", "https", "mailto", "tel"),
		allowedSchemesByTag: map[string]map[string]struct{}{
			// iframeはhttpsのみ。画像・メディアはmailto/telを除外する。
			"iframe": newSet("https"),
			"img":    newSet("http", "https"),
			"source": newSet("http", "https"),
			"video":  newSet("http", "https"),
			"audio":  newSet("http", "https"),
			"track":  newSet("http", "https"),
		},
		urlAttrs: map[string]map[string]struct{}{
			"a":          newSet("href"),
			"img":        newSet("src", "srcset"),
			"source":     newSet("src", "srcset"),
			"video":      newSet("src", "poster"),
			"audio":      newSet("src"),
			"track":      newSet("src"),
			"iframe":     newSet("src"),
			"blockquote": newSet("cite"),
			"q":          newSet("cite"),
			"del":        newSet("cite"),
			"ins":        newSet("cite"),
		},
	}
}

// InlinePolicy はタイトル等の単純なリッチテキストスパン向けの縮小ポリシーを返す。
// 太字・斜体・スパン・アンカー・改行のみを許可し、属性・スキームの
// 判定機構はDefaultPolicyと同一のものを使う。
func InlinePolicy() *Policy {
	return &Policy{
		allowedTags: newSet("b", "strong", "i", "em", "span", "a", "br", "code"),
		allowedAttrs: map[string]map[string]struct{}{
			"*": newSet("class", "lang", "dir", "title"),
			"a": newSet("href", "target", "rel"),
		},
		wildcardAttrPrefixes: []string{"aria-"},
		allowedSchemes:       newSet("http", "https", "mailto", "tel"),
		allowedSchemesByTag:  map[string]map[string]struct{}{},
		urlAttrs: map[string]map[string]struct{}{
			"a": newSet("href"),
		},
	}
}

// allowsTag はタグが許可リストに含まれるかを返す。
func (p *Policy) allowsTag(tag string) bool {
	_, ok := p.allowedTags[tag]
	return ok
}

// allowsAttr は属性がタグ別・共通・ワイルドカードのいずれかで
// 許可されているかを返す。on*イベントハンドラとstyleはどの経路でも
// 許可されないため、ここで自動的に落ちる。
func (p *Policy) allowsAttr(tag, attr string) bool {
	if tagAttrs, ok := p.allowedAttrs[tag]; ok {
		if _, ok := tagAttrs[attr]; ok {
			return true
		}
	}
	if global, ok := p.allowedAttrs["*"]; ok {
		if _, ok := global[attr]; ok {
			return true
		}
	}
	for _, prefix := range p.wildcardAttrPrefixes {
		if strings.HasPrefix(attr, prefix) && len(attr) > len(prefix) {
			return true
		}
	}
	return false
}

// isURLAttr は属性がURLを値として持つ（スキーム検証の対象となる）かを返す。
func (p *Policy) isURLAttr(tag, attr string) bool {
	attrs, ok := p.urlAttrs[tag]
	if !ok {
		return false
	}
	_, ok = attrs[attr]
	return ok
}

// schemesFor はタグに適用されるスキーム許可集合を返す。
// タグ別の上書きがあればそちら、なければグローバル集合。
func (p *Policy) schemesFor(tag string) map[string]struct{} {
	if s, ok := p.allowedSchemesByTag[tag]; ok {
		return s
	}
	return p.allowedSchemes
}

// allowsURL は属性値のURLスキームが許可されているかを判定する。
//
// HTMLパーサが属性値のエンティティ（&#58; 等）を復号済みであることを
// 前提に、さらにブラウザが無視する制御文字・空白をスキーム判定前に
// 取り除く。"javascript" を文字列検索するのではなく、最初の区切り文字
// より前をスキームとして取り出して集合と照合する。
// スキームを持たない相対URLは常に許可される。
func (p *Policy) allowsURL(tag, val string) bool {
	v := stripControlAndSpace(strings.TrimSpace(val))

	// スキームは最初の ':' より前、かつ '/', '?', '#' より前に限る
	i := strings.IndexAny(v, ":/?#")
	if i < 0 || v[i] != ':' {
		// スキームなしの相対URL
		return true
	}

	scheme := strings.ToLower(v[:i])
	_, ok := p.schemesFor(tag)[scheme]
	return ok
}

// allowsSrcSet はsrcset属性の全候補URLについてスキームを検証する。
// 1つでも不許可のスキームを含む場合は属性全体を拒否する。
func (p *Policy) allowsSrcSet(tag, val string) bool {
	for _, candidate := range strings.Split(val, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		if !p.allowsURL(tag, fields[0]) {
			return false
		}
	}
	return true
}

// stripControlAndSpace はASCII制御文字とタブ・改行を取り除く。
// ブラウザは "java\tscript:" のような値を "javascript:" として
// 解釈するため、スキーム照合前に同じ正規化を行う必要がある。
func stripControlAndSpace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
