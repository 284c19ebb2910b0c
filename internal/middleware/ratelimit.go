package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit // API全般のレート（req/sec）
	GeneralBurst    int
	ToggleRate      rate.Limit // 選択トグルのレート（req/sec）
	ToggleBurst     int
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、選択トグル 30 req/min（identity単位）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 30)
}

// NewRateLimiterConfig は1分あたりの上限からRateLimiterConfigを生成する。
func NewRateLimiterConfig(generalPerMin, togglePerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		ToggleRate:      rate.Limit(float64(togglePerMin) / 60.0),
		ToggleBurst:     togglePerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

type trackedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はidentityごとのリミッター集合。
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*trackedLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{limit: limit, burst: burst, limiters: make(map[string]*trackedLimiter)}
}

func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.limiters[key]
	if !ok {
		tl = &trackedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = tl
	}
	tl.lastAccess = now
	return tl.limiter
}

func (s *limiterSet) evictIdle(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, tl := range s.limiters {
		if now.Sub(tl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はidentity（ログインユーザーまたは匿名端末）ごとのレート制限を管理する。
// IdentityMiddlewareまたはSessionMiddlewareの後に配置する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	toggle  *limiterSet
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成し、アイドルエントリの掃除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet(config.GeneralRate, config.GeneralBurst),
		toggle:  newLimiterSet(config.ToggleRate, config.ToggleBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general")
}

// ToggleMiddleware は選択トグル専用のレート制限ミドルウェアを返す。
// API全般の制限とは独立に動作する。
func (rl *RateLimiter) ToggleMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.toggle, "selection_toggle")
}

func (rl *RateLimiter) middleware(set *limiterSet, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := identityKey(r)
			if !ok {
				WriteUnauthorized(w)
				return
			}

			if !set.get(key, time.Now()).Allow() {
				writeRateLimitResponse(w, set.limit)
				slog.Warn("rate limit exceeded",
					slog.String("identity", key),
					slog.String("limit_type", limitType),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は管理中のAPI全般リミッター数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int { return rl.general.len() }

// ToggleLimiterCount は管理中の選択トグルリミッター数を返す。
func (rl *RateLimiter) ToggleLimiterCount() int { return rl.toggle.len() }

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evictIdle(now, ttl)
	rl.toggle.evictIdle(now, ttl)
}

// identityKey はレート制限のキーを返す。ユーザーと端末は別の名前空間にする。
func identityKey(r *http.Request) (string, bool) {
	id, ok := selection.IdentityFromContext(r.Context())
	if !ok {
		return "", false
	}
	switch {
	case id.Authenticated():
		return "user:" + id.UserID, true
	case id.Anonymous():
		return "device:" + id.DeviceID, true
	default:
		return "", false
	}
}

// writeRateLimitResponse は429を書き込む。
// Retry-Afterには1トークンが補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
