package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/scholarfind/internal/model"
)

// TestWriteErrorResponse_DomainErrors はドメインエラーが統一フォーマットで書き込まれることを検証する。
func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		apiErr     *model.APIError
	}{
		{"CapacityExceeded", http.StatusConflict, model.NewCapacityExceededError(3)},
		{"Persistence", http.StatusServiceUnavailable, model.NewPersistenceError("add")},
		{"InvalidDomain", http.StatusBadRequest, model.NewInvalidDomainError("fees")},
		{"MicrositeNotFound", http.StatusNotFound, model.NewMicrositeNotFoundError("iim-a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.statusCode, tt.apiErr)

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body != NewErrorResponseBody(tt.apiErr) {
				t.Errorf("body = %+v, want %+v", body, NewErrorResponseBody(tt.apiErr))
			}
			if body.Message == "" || body.Action == "" {
				t.Error("message and action should not be empty")
			}
		})
	}
}

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter)
		status   int
		code     string
		category string
	}{
		{"Internal", WriteInternalServerError, http.StatusInternalServerError, "INTERNAL_ERROR", "system"},
		{"Unauthorized", WriteUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "auth"},
		{"Forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "x") }, http.StatusForbidden, "FORBIDDEN", "auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var raw map[string]any
			if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if raw["code"] != tt.code || raw["category"] != tt.category {
				t.Errorf("body = %v", raw)
			}
			for _, field := range []string{"code", "message", "category", "action"} {
				if _, ok := raw[field]; !ok {
					t.Errorf("missing required field: %s", field)
				}
			}
		})
	}
}
