// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はマイクロサイトのタブ本文や取り込んだ奨学金情報のHTMLを
// 許可リストベースのbluemondayポリシーでサニタイズする。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizer interface {
	// Sanitize はHTMLコンテンツをサニタイズして返す。
	// 空文字列の入力には空文字列を返し、同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

type policySanitizer struct {
	policy *bluemonday.Policy
	plain  bool
}

// NewMicrositeSanitizer はマイクロサイトのタブ本文用のサニタイザを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, strong, em, h2〜h4, table系, a, img
//   - script, iframe, style および全てのon*イベント属性は除去
//   - imgのsrc属性とaのhref属性はhttpsスキームのみ許可
//   - aタグには target="_blank" と rel="noopener noreferrer" を付与
func NewMicrositeSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
		"h2", "h3", "h4",
		"table", "thead", "tbody", "tr",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("th", "td")
	p.AllowElements("th", "td")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &policySanitizer{policy: p}
}

// NewPlainTextSanitizer は全てのタグを除去してプレーンテキストにするサニタイザを生成する。
// 取り込んだ奨学金の応募資格テキストに使う。実体参照は復元し、連続する空白は1つにまとめる。
func NewPlainTextSanitizer() ContentSanitizer {
	return &policySanitizer{policy: bluemonday.StrictPolicy(), plain: true}
}

// Sanitize はHTMLコンテンツをサニタイズして返す。
func (s *policySanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	out := s.policy.Sanitize(rawHTML)
	if s.plain {
		out = strings.Join(strings.Fields(html.UnescapeString(out)), " ")
	}
	return out
}
