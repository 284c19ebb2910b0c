package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// 選択リスト、プロフィール、セッション、ユーザーを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// SelectionForgetter は主体の同期器を破棄する。
type SelectionForgetter interface {
	Forget(id selection.Identity)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service    UserServiceInterface
	selections SelectionForgetter
	config     AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。selectionsはnilでもよい。
func NewUserHandler(service UserServiceInterface, selections SelectionForgetter, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:    service,
		selections: selections,
		config:     config,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// メモリ上に残った選択リストが削除済みユーザーの状態を返さないようにする
	if h.selections != nil {
		h.selections.Forget(selection.Identity{UserID: userID})
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
