package sanitize

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Report はサニタイズ中に除去・無害化した内容の集計。
// メトリクス記録用であり、判定結果には影響しない。
type Report struct {
	// DroppedElements はサブツリーごと破棄した要素数。
	DroppedElements int
	// DroppedAttrs は許可リスト外またはスキーム不許可で落とした属性数。
	DroppedAttrs int
	// BlockedEmbeds はプレースホルダに置換したiframe数。
	BlockedEmbeds int
}

// Sanitizer は信頼できないHTML断片を許可リストベースで無害化するエンジン。
//
// 正規表現によるタグ除去は入れ子・不正なタグで容易にバイパスされるため、
// 必ずパース済みの要素ツリーに対してフィルタを適用する。処理は純粋で、
// 構築後の並行呼び出しに対して安全。入力がどれほど壊れていても
// panicやエラーを外に漏らさず、最悪でも空文字列を返す。
type Sanitizer struct {
	policy       *Policy
	inlinePolicy *Policy
	links        *LinkClassifier
	embeds       *EmbedAllowList

	// collapseEmptyParagraphs は空白のみで構成され、メディア子孫を持たない
	// <p> を出力から取り除く。セキュリティ処理ではなくコンテンツ品質の掃除。
	collapseEmptyParagraphs bool
}

// New はデフォルトのポリシーでSanitizerを構築する。
// linksとembedsは必須で、それぞれ外部リンク注釈とiframe検証に使われる。
func New(links *LinkClassifier, embeds *EmbedAllowList) *Sanitizer {
	return &Sanitizer{
		policy:                  DefaultPolicy(),
		inlinePolicy:            InlinePolicy(),
		links:                   links,
		embeds:                  embeds,
		collapseEmptyParagraphs: true,
	}
}

// Sanitize はHTML断片を無害化して返す。
// 空・空白のみの入力には空文字列を返し、決してpanicしない。
// 同一入力に対して常に同一出力を返し、出力を再度通しても変化しない（冪等）。
func (s *Sanitizer) Sanitize(fragment string) string {
	out, _ := s.run(s.policy, fragment, s.collapseEmptyParagraphs)
	return out
}

// SanitizeWithReport はSanitizeと同じ処理を行い、除去内容の集計を併せて返す。
// インジェスト側がメトリクスを記録するために使う。
func (s *Sanitizer) SanitizeWithReport(fragment string) (string, Report) {
	return s.run(s.policy, fragment, s.collapseEmptyParagraphs)
}

// SanitizeInline はタイトル等の単純なリッチテキスト向けの縮小ポリシーで
// 無害化する。別実装ではなく、同一エンジンにInlinePolicyを適用したもの。
func (s *Sanitizer) SanitizeInline(fragment string) string {
	out, _ := s.run(s.inlinePolicy, fragment, false)
	return out
}

// run はサニタイズの本体。パース → ツリーフィルタ → 再シリアライズを行う。
// 内部のいかなる失敗もベストエフォート出力（最悪は空文字列）に吸収する。
func (s *Sanitizer) run(p *Policy, fragment string, collapse bool) (out string, rep Report) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
		}
	}()

	if strings.TrimSpace(fragment) == "" {
		return "", rep
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return "", rep
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	s.filterChildren(p, root, &rep)

	if collapse {
		collapseEmpty(root)
	}

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", rep
		}
	}
	return buf.String(), rep
}

// filterChildren はparentの子ノード列にポリシーを適用する。
// 要素以外ではテキストのみ残し、コメント・doctype等は落とす。
func (s *Sanitizer) filterChildren(p *Policy, parent *html.Node, rep *Report) {
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
			// そのまま残す。シリアライズ時にエスケープされる。
		case html.ElementNode:
			s.filterElement(p, parent, c, rep)
		default:
			parent.RemoveChild(c)
		}
		c = next
	}
}

// filterElement は単一要素にポリシーを適用する。
// 許可リスト外のタグはサブツリーごと破棄する。script等の内部テキストを
// 取り出して残すことはしない（alert('...')のような攻撃文字列が
// 本文に漏れ出すのを防ぐため、丸ごと落とす）。
func (s *Sanitizer) filterElement(p *Policy, parent, n *html.Node, rep *Report) {
	tag := n.Data

	if !p.allowsTag(tag) {
		parent.RemoveChild(n)
		rep.DroppedElements++
		return
	}

	if tag == "iframe" {
		s.filterIframe(p, parent, n, rep)
		return
	}

	s.filterAttrs(p, n, rep)

	if tag == "a" {
		s.annotateAnchor(n)
	}

	s.filterChildren(p, n, rep)
}

// filterAttrs は要素の属性列にタグ別・共通・ワイルドカードの許可リストと
// URLスキーム検証を適用する。不許可の属性は（無害化ではなく）削除する。
func (s *Sanitizer) filterAttrs(p *Policy, n *html.Node, rep *Report) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" {
			rep.DroppedAttrs++
			continue
		}
		key := strings.ToLower(a.Key)
		if !p.allowsAttr(n.Data, key) {
			rep.DroppedAttrs++
			continue
		}
		if p.isURLAttr(n.Data, key) {
			allowed := false
			if key == "srcset" {
				allowed = p.allowsSrcSet(n.Data, a.Val)
			} else {
				allowed = p.allowsURL(n.Data, a.Val)
			}
			if !allowed {
				rep.DroppedAttrs++
				continue
			}
		}
		a.Key = key
		kept = append(kept, a)
	}
	n.Attr = kept
}

// filterIframe は属性フィルタ済みのiframeを埋め込み許可リストで検証する。
// 許可された場合はloading="lazy"を保証し、そうでない場合は要素全体を
// 実行可能コンテンツを持たない不活性なプレースホルダに置き換える。
// 無言の削除ではなく、理由付きの可視なno-opとしてレンダリングされる。
// プレースホルダはフレージングコンテンツの<span>とする。<div>だと
// <p>内のiframeを置換した出力が再パース時に段落を分割してしまい、
// 再サニタイズで出力が変化する。
func (s *Sanitizer) filterIframe(p *Policy, parent, n *html.Node, rep *Report) {
	src := attrVal(n, "src")

	allowed, reason := s.embeds.Check(src)
	if !allowed {
		placeholder := &html.Node{
			Type:     html.ElementNode,
			Data:     "span",
			DataAtom: atom.Span,
			Attr: []html.Attribute{
				{Key: "class", Val: "blocked-embed"},
				{Key: "data-blocked-reason", Val: reason},
			},
		}
		parent.InsertBefore(placeholder, n)
		parent.RemoveChild(n)
		rep.BlockedEmbeds++
		return
	}

	s.filterAttrs(p, n, rep)

	if attrVal(n, "loading") == "" {
		setAttr(n, "loading", "lazy")
	}

	// iframeのフォールバックコンテンツは出力しない
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// annotateAnchor は外部リンクにnoopener/noreferrerをマージする。
// 既存のrelトークン（nofollow等）は保持し、重複は追加しない。
// 内部リンクのrelには触れない。
func (s *Sanitizer) annotateAnchor(n *html.Node) {
	if !s.links.IsExternal(attrVal(n, "href"), attrVal(n, "target")) {
		return
	}
	setAttr(n, "rel", mergeRelTokens(attrVal(n, "rel"), "noopener", "noreferrer"))
}

// mergeRelTokens は空白区切りのrel値に指定トークンを重複なしで追加する。
// 既存トークンの順序は保持される。
func mergeRelTokens(existing string, add ...string) string {
	tokens := strings.Fields(existing)
	seen := make(map[string]struct{}, len(tokens)+len(add))
	for _, t := range tokens {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range add {
		if _, ok := seen[strings.ToLower(t)]; !ok {
			tokens = append(tokens, t)
			seen[strings.ToLower(t)] = struct{}{}
		}
	}
	return strings.Join(tokens, " ")
}

// attrVal はノードの属性値を返す。属性が存在しない場合は空文字列。
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// setAttr は属性を設定する。既存なら値を上書きし、なければ追加する。
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// mediaTags は空段落の判定で「中身あり」とみなす要素。
var mediaTags = newSet("img", "picture", "video", "audio", "iframe", "source", "embed", "object")

// collapseEmpty は空白のみでメディア子孫を持たない<p>を取り除く。
func collapseEmpty(parent *html.Node) {
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if c.Data == "p" && isEmptyParagraph(c) {
				parent.RemoveChild(c)
			} else {
				collapseEmpty(c)
			}
		}
		c = next
	}
}

// isEmptyParagraph は段落が空白（&nbsp;含む）のみで構成され、
// メディア要素を一切含まないかを判定する。
// ブロック済み埋め込みのプレースホルダは可視なコンテンツとして扱う。
func isEmptyParagraph(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimFunc(c.Data, isCollapsibleSpace) != "" {
				return false
			}
		case html.ElementNode:
			if _, ok := mediaTags[c.Data]; ok {
				return false
			}
			if hasClassToken(c, "blocked-embed") {
				return false
			}
			if !isEmptyParagraph(c) {
				return false
			}
		}
	}
	return true
}

// hasClassToken はclass属性が指定トークンを含むかを判定する。
func hasClassToken(n *html.Node, token string) bool {
	for _, t := range strings.Fields(attrVal(n, "class")) {
		if t == token {
			return true
		}
	}
	return false
}

// isCollapsibleSpace はASCII空白とノーブレークスペースを空白とみなす。
func isCollapsibleSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', ' ':
		return true
	}
	return false
}
