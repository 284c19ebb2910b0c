package model

import "strings"

// MicrositeTab はマイクロサイトのタブ種別。
type MicrositeTab string

const (
	TabFees      MicrositeTab = "fees"
	TabPlacement MicrositeTab = "placement"
	TabAdmission MicrositeTab = "admission"
	TabCutoff    MicrositeTab = "cutoff"
	TabRanking   MicrositeTab = "ranking"
	TabReviews   MicrositeTab = "reviews"
)

// MicrositeTabs は表示順のタブ一覧。
var MicrositeTabs = []MicrositeTab{TabFees, TabPlacement, TabAdmission, TabCutoff, TabRanking, TabReviews}

// ParseMicrositeTab はタブ名を検証する。空文字列は「全タブ」としてok=trueで返す。
func ParseMicrositeTab(s string) (MicrositeTab, bool) {
	v := MicrositeTab(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return "", true
	}
	for _, t := range MicrositeTabs {
		if t == v {
			return t, true
		}
	}
	return "", false
}

// MicrositeSection はタブ1つ分のコンテンツ（サニタイズ済みHTML）。
type MicrositeSection struct {
	Tab     MicrositeTab
	Title   string
	Content string
}

// MicrositePage はマイクロサイト本体とタブコンテンツを結合したもの。
type MicrositePage struct {
	MicrositeCandidate
	Sections []MicrositeSection
}
