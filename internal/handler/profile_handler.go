package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// profileRequest はプロフィール更新のリクエストボディ。
type profileRequest struct {
	Degree     string             `json:"degree"`
	Program    string             `json:"program"`
	States     []string           `json:"states"`
	TestScores map[string]float64 `json:"test_scores"`
}

// profileResponse はプロフィールのレスポンス。
type profileResponse struct {
	Degree     string             `json:"degree"`
	Program    string             `json:"program"`
	States     []string           `json:"states"`
	TestScores map[string]float64 `json:"test_scores"`
	Complete   bool               `json:"complete"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`
}

func newProfileResponse(p *model.Profile) profileResponse {
	resp := profileResponse{
		Degree:     p.Degree,
		Program:    p.Program,
		States:     p.States,
		TestScores: p.TestScores,
		Complete:   p.HasProgram(),
	}
	if resp.States == nil {
		resp.States = []string{}
	}
	if resp.TestScores == nil {
		resp.TestScores = map[string]float64{}
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// Get はログインユーザーのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

// Update はログインユーザーのプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidProfileError("リクエストボディが不正です"))
		return
	}

	p, err := h.service.Update(r.Context(), userID, profile.UpdateInput{
		Degree:     req.Degree,
		Program:    req.Program,
		States:     req.States,
		TestScores: req.TestScores,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}
