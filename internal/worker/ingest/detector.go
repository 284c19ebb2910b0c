package ingest

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	FeedTypeRSS  FeedType = "rss"
	FeedTypeAtom FeedType = "atom"
)

// FeedLink は配信元のHTMLページから検出されたフィードリンク。
type FeedLink struct {
	URL      string
	FeedType FeedType
	Title    string
}

var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes は汎用XMLとして扱うContent-Type（ボディ解析が必要）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// IsDirectFeed はContent-Typeとボディから、レスポンスがRSS/Atomフィードかを判定する。
// 奨学金団体のサイトはContent-Typeを正しく返さないことが多いため、
// Content-Typeが空の場合もボディを検査する。
func IsDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, ct := range feedContentTypes {
		if mediaType == ct {
			return true
		}
	}

	isXML := mediaType == ""
	for _, ct := range xmlContentTypes {
		if mediaType == ct {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}
	return looksLikeFeed(body)
}

// looksLikeFeed はボディ先頭4KBにRSS/Atomのルート要素があるかを調べる。
func looksLikeFeed(body []byte) bool {
	prefix := strings.ToLower(string(body[:min(len(body), 4096)]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// IsHTML はContent-TypeがHTMLかを返す。
func IsHTML(contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// ParseFeedLinks はHTMLのheadにある rel="alternate" のRSS/Atomリンクを返す。
// 相対URLはbaseURLを基準に解決する。
func ParseFeedLinks(htmlBody []byte, baseURL string) []FeedLink {
	var links []FeedLink

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tag := string(tn)

			if tag == "head" {
				inHead = true
				continue
			}
			if tag == "body" {
				return links
			}
			if !inHead || tag != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}

			var ft FeedType
			switch linkType {
			case "application/rss+xml":
				ft = FeedTypeRSS
			case "application/atom+xml":
				ft = FeedTypeAtom
			default:
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, FeedLink{
				URL:      base.ResolveReference(ref).String(),
				FeedType: ft,
				Title:    title,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return links
			}
		}
	}
}

// SelectBestFeed は候補から同一ホスト > Atom > 先頭 の優先順位で1件選ぶ。
func SelectBestFeed(links []FeedLink, pageURL string) *FeedLink {
	if len(links) == 0 {
		return nil
	}

	pageHost := hostOf(pageURL)
	bestIdx, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == pageHost {
			score += 100
		}
		if l.FeedType == FeedTypeAtom {
			score += 10
		}
		// 同点の場合は先に出現したリンクを残す
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &links[bestIdx]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
