package selection

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultIdleTTL は使われていない同期器を破棄するまでの時間。
const DefaultIdleTTL = 10 * time.Minute

// Registry は(主体, Key)ごとのSynchronizerをリクエストをまたいで共有する。
// 同じリストへの同時操作は同じ同期器に集まり、MUTATION_IN_PROGRESSで直列化される。
// 一定時間使われなかった同期器は破棄され、次回アクセス時にストアから読み直す。
type Registry struct {
	factory *Factory
	ttl     time.Duration
	mu      sync.Mutex
	cache   *gocache.Cache
}

// NewRegistry はRegistryを生成する。ttlが0以下の場合はDefaultIdleTTLを使う。
func NewRegistry(factory *Factory, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	c := gocache.New(ttl, ttl)
	c.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*Synchronizer); ok {
			s.Close()
		}
	})
	return &Registry{factory: factory, ttl: ttl, cache: c}
}

// Get は主体とKeyに対応するSynchronizerを返す。なければ生成する。
// 取得のたびに破棄までの時間を延長する。
func (r *Registry) Get(id Identity, key Key) (*Synchronizer, error) {
	name, err := registryKey(id, key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(name); ok {
		s := v.(*Synchronizer)
		r.cache.Set(name, s, r.ttl)
		return s, nil
	}

	s, err := r.factory.For(id, key)
	if err != nil {
		return nil, err
	}
	r.cache.Set(name, s, r.ttl)
	return s, nil
}

// Forget は主体の全リストの同期器を破棄する。退会時に使う。
func (r *Registry) Forget(id Identity) {
	prefix, err := identityPrefix(id)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.cache.Items() {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			r.cache.Delete(name)
		}
	}
}

// CandidateCacheFor は主体のストアが候補キャッシュを持つ場合にそれを返す。
// ログインユーザーのリモートストアはキャッシュを持たないためnilを返す。
func (r *Registry) CandidateCacheFor(id Identity, key Key) CandidateCache {
	store, err := r.factory.StoreFor(id, key)
	if err != nil {
		return nil
	}
	cache, _ := store.(CandidateCache)
	return cache
}

// Len は保持している同期器の数を返す。
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

func identityPrefix(id Identity) (string, error) {
	switch {
	case id.Authenticated():
		return "user:" + id.UserID + ":", nil
	case id.Anonymous():
		return "device:" + id.DeviceID + ":", nil
	default:
		return "", ErrNoIdentity
	}
}

func registryKey(id Identity, key Key) (string, error) {
	prefix, err := identityPrefix(id)
	if err != nil {
		return "", err
	}
	return prefix + key.String(), nil
}
