// Package kvstore は匿名ユーザーの端末ローカル保存領域を提供する。
// キーは文字列、値は不透明なバイト列として扱う。
package kvstore

import (
	"context"
	"errors"
)

// ErrUnavailable はバックエンドが利用できない場合に返される。
var ErrUnavailable = errors.New("kvstore unavailable")

// Store はキーバリューストアのインターフェース。
// Getはキーが存在しない場合に (nil, false, nil) を返す。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// namespaced はキーにプレフィックスを付与して下位のStoreに委譲する。
type namespaced struct {
	inner  Store
	prefix string
}

// Namespace はprefixで区切られた独立したキー空間を返す。
// 端末ごとに "device:<id>:" のようなプレフィックスを与えて使う。
func Namespace(inner Store, prefix string) Store {
	return &namespaced{inner: inner, prefix: prefix}
}

// DevicePrefix は端末IDからキー空間のプレフィックスを生成する。
func DevicePrefix(deviceID string) string {
	return "device:" + deviceID + ":"
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}
