// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/selection"
)

const (
	sessionCookieName = "session_id"

	// deviceCookieName は匿名端末を識別するCookieの名前。
	// 値は端末ごとのkvstore名前空間のキーになる。
	deviceCookieName = "device_id"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はログイン必須のエンドポイント用ミドルウェアを返す。
// 有効なセッションがない場合は401を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := lookupSession(r, sessionFinder)
			if !ok {
				WriteUnauthorized(w)
				return
			}
			ctx := withUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityConfig は匿名端末Cookieの設定。
type IdentityConfig struct {
	CookieSecure bool
	CookieDomain string
	DeviceMaxAge int // 秒
}

// NewIdentityMiddleware はログイン・匿名の両方を受け付けるミドルウェアを返す。
// 有効なセッションがあればユーザー、なければ端末Cookieのidentityを
// コンテキストに注入する。端末Cookieがなければ発行する。
func NewIdentityMiddleware(sessionFinder SessionFinder, config IdentityConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := lookupSession(r, sessionFinder); ok {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID)))
				return
			}

			deviceID := deviceIDFromCookie(r)
			if deviceID == "" {
				deviceID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     deviceCookieName,
					Value:    deviceID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.DeviceMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := attachIdentity(r.Context(), selection.Identity{DeviceID: deviceID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupSession はCookieのセッションを検証し、ユーザーIDを返す。
func lookupSession(r *http.Request, sessionFinder SessionFinder) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if session == nil {
		return "", false
	}
	return session.UserID, true
}

// deviceIDFromCookie はUUID形式の端末Cookieを返す。不正な値は空文字。
func deviceIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(deviceCookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

func withUser(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return attachIdentity(ctx, selection.Identity{UserID: userID})
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 匿名端末のリクエストではエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDとidentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return withUser(ctx, userID)
}
