package selection

import (
	"errors"
	"log/slog"

	"github.com/hitoshi/scholarfind/internal/kvstore"
	"github.com/hitoshi/scholarfind/internal/repository"
)

// ErrNoIdentity はユーザーIDも端末IDも持たないリクエストに対して返される。
var ErrNoIdentity = errors.New("selection: identity is required")

// Factory は主体に応じた権威ストアを選び、Synchronizerを生成する。
type Factory struct {
	repo     repository.SelectionRepository
	kv       kvstore.Store
	observer Observer
	logger   *slog.Logger
}

// NewFactory はFactoryを生成する。kvは全端末で共有するストアで、
// 端末ごとの名前空間はFactoryが切り出す。
func NewFactory(repo repository.SelectionRepository, kv kvstore.Store, observer Observer, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{repo: repo, kv: kv, observer: observer, logger: logger}
}

// StoreFor は主体とKeyに対応する権威ストアを返す。
func (f *Factory) StoreFor(id Identity, key Key) (Store, error) {
	switch {
	case id.Authenticated():
		return NewRemoteStore(f.repo, key, id.UserID), nil
	case id.Anonymous():
		return NewLocalStore(kvstore.Namespace(f.kv, kvstore.DevicePrefix(id.DeviceID)), key), nil
	default:
		return nil, ErrNoIdentity
	}
}

// For は主体とKeyに対応するSynchronizerを生成する。ストアの選択は生成時に1度だけ行う。
func (f *Factory) For(id Identity, key Key) (*Synchronizer, error) {
	store, err := f.StoreFor(id, key)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLogger(f.logger)}
	if f.observer != nil {
		opts = append(opts, WithObserver(f.observer))
	}
	return NewSynchronizer(key, store, opts...), nil
}
