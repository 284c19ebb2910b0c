// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// writeAPIErrorResponse はAPIErrorを統一フォーマットのJSONで書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeJSON はレスポンスボディをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	switch {
	case errors.Is(err, selection.ErrNoIdentity):
		middleware.WriteUnauthorized(w)
		return
	case errors.Is(err, selection.ErrClosed):
		// 退会・期限切れで破棄された同期器に当たった。再試行すれば新しい同期器で処理される。
		writeAPIErrorResponse(w, http.StatusConflict, model.NewMutationInProgressError())
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードに対応するHTTPステータスコードを返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeCapacityExceeded, model.ErrCodeMutationInProgress:
		return http.StatusConflict
	case model.ErrCodePersistence:
		return http.StatusServiceUnavailable
	case model.ErrCodeCandidateNotFound, model.ErrCodeMicrositeNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidDomain, model.ErrCodeInvalidKind, model.ErrCodeInvalidTab, model.ErrCodeInvalidProfile:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeBadRequest はリクエスト形式の誤りを400で返す。
func writeBadRequest(w http.ResponseWriter, message string) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	})
}

// parseIDParam はURLパラメータの候補IDを解析する。
func parseIDParam(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseIntQuery はクエリパラメータを整数として解析する。未指定なら0を返す。
func parseIntQuery(r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
