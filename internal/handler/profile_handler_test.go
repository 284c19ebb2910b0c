package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/profile"
)

func TestProfileHandler_Get(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Degree: "B.Tech", Program: "Computer Science", UpdatedAt: time.Now()}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp profileResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Complete || resp.Program != "Computer Science" || resp.UpdatedAt == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.States == nil || resp.TestScores == nil {
		t.Error("未入力の配列・マップは空で返すべき")
	}
}

func TestProfileHandler_Get_EmptyIsIncomplete(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()
	h.Get(w, req)

	var raw map[string]any
	json.NewDecoder(w.Body).Decode(&raw)
	if raw["complete"] != false {
		t.Errorf("complete = %v, want false", raw["complete"])
	}
	if _, ok := raw["updated_at"]; ok {
		t.Error("未保存のプロフィールはupdated_atを出力しないべき")
	}
}

func TestProfileHandler_Update(t *testing.T) {
	var got profile.UpdateInput
	h := NewProfileHandler(&mockProfileService{
		updateFn: func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
			got = in
			return &model.Profile{UserID: userID, Program: in.Program, States: in.States, TestScores: in.TestScores}, nil
		},
	})

	body := `{"degree":"B.Tech","program":"Mechanical","states":["Kerala"],"test_scores":{"jee":92.5}}`
	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.Program != "Mechanical" || len(got.States) != 1 || got.TestScores["jee"] != 92.5 {
		t.Errorf("input = %+v", got)
	}
}

func TestProfileHandler_Update_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		svcErr error
		status int
		code   string
	}{
		{"JSONが不正", "{", nil, http.StatusBadRequest, model.ErrCodeInvalidProfile},
		{"検証エラー", `{"program":"x"}`, model.NewInvalidProfileError("too long"), http.StatusBadRequest, model.ErrCodeInvalidProfile},
		{"保存失敗", `{"program":"x"}`, errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewProfileHandler(&mockProfileService{
				updateFn: func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
					return nil, tt.svcErr
				},
			})
			req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(tt.body))
			req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
			w := httptest.NewRecorder()
			h.Update(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if code := decodeErrorBody(t, w).Code; code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestProfileHandler_RequiresUser(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})
	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
