// Package selection はユーザーごとの選択リスト（比較・保存）を
// 権威ストアと同期する機能を提供する。
//
// ログインユーザーはリモートストア（PostgreSQL）、匿名ユーザーは端末ローカルの
// キーバリューストアを権威ストアとし、どちらを使うかは同期器の生成時に1度だけ決まる。
// ログイン時に匿名の選択をリモートへ統合することはしない。
package selection

import (
	"fmt"

	"github.com/hitoshi/scholarfind/internal/model"
)

// Key は選択リストを識別する(kind, domain)の組。
// ドメインが異なるリストは同じIDを含んでいても互いに干渉しない。
type Key struct {
	Kind   model.Kind
	Domain model.Domain
}

// ParseKey はURLパラメータ等の文字列からKeyを生成する。
func ParseKey(kind, domain string) (Key, error) {
	k, err := model.ParseKind(kind)
	if err != nil {
		return Key{}, err
	}
	d, err := model.ParseDomain(domain)
	if err != nil {
		return Key{}, err
	}
	return Key{Kind: k, Domain: d}, nil
}

// Capacity はリストの上限件数を返す。0は上限なし。
func (k Key) Capacity() int {
	return k.Kind.Capacity()
}

// IDsStorageKey は端末ローカルストアでID配列を保存するキー。
func (k Key) IDsStorageKey() string {
	return fmt.Sprintf("%s_%s_ids", k.Kind, k.Domain)
}

// CacheStorageKey は端末ローカルストアで候補レコードのキャッシュを保存するキー。
func (k Key) CacheStorageKey() string {
	return fmt.Sprintf("%s_%s_cache", k.Kind, k.Domain)
}

func (k Key) String() string {
	return string(k.Kind) + "/" + string(k.Domain)
}
