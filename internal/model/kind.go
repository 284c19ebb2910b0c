package model

import "strings"

// Kind は選択リストの種類を表す。
type Kind string

const (
	// KindCompare は比較リスト（最大3件）。
	KindCompare Kind = "compare"
	// KindShortlist は保存リスト（上限なし）。
	KindShortlist Kind = "shortlist"
)

// CompareCapacity は比較リストの最大件数。
const CompareCapacity = 3

// ParseKind は文字列をKindに変換する。"saved"はshortlistの別名として受け付ける。
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compare":
		return KindCompare, nil
	case "shortlist", "saved":
		return KindShortlist, nil
	default:
		return "", NewInvalidKindError(s)
	}
}

// Capacity はリスト種別ごとの上限件数を返す。0は上限なしを表す。
func (k Kind) Capacity() int {
	if k == KindCompare {
		return CompareCapacity
	}
	return 0
}
