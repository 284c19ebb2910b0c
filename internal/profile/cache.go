package profile

import (
	"maps"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/scholarfind/internal/model"
)

// DefaultCacheTTL はプロフィールキャッシュの既定保持期間。
const DefaultCacheTTL = 5 * time.Minute

// Cache はユーザーIDをキーにプロフィールを保持するTTL付きキャッシュ。
// プロフィール更新時はInvalidateで明示的に破棄する。
type Cache struct {
	c *gocache.Cache
}

// NewCache はTTLを指定してCacheを生成する。ttlが0以下の場合はDefaultCacheTTLを使う。
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

// Get はキャッシュ済みのプロフィールのコピーを返す。
func (c *Cache) Get(userID string) (*model.Profile, bool) {
	v, ok := c.c.Get(userID)
	if !ok {
		return nil, false
	}
	p, ok := v.(model.Profile)
	if !ok {
		return nil, false
	}
	p = clone(p)
	return &p, true
}

// Set はプロフィールのコピーを保存する。
func (c *Cache) Set(userID string, p *model.Profile) {
	if p == nil {
		return
	}
	c.c.Set(userID, clone(*p), gocache.DefaultExpiration)
}

// clone はスライスとマップを含めてプロフィールを複製する。
func clone(p model.Profile) model.Profile {
	p.States = slices.Clone(p.States)
	p.TestScores = maps.Clone(p.TestScores)
	return p
}

// Invalidate は指定ユーザーのエントリを破棄する。
func (c *Cache) Invalidate(userID string) {
	c.c.Delete(userID)
}

// Len は保持しているエントリ数を返す。期限切れで未回収のものを含む。
func (c *Cache) Len() int {
	return c.c.ItemCount()
}
