package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/recommend"
	"github.com/hitoshi/scholarfind/internal/scoring"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// RecommendServiceInterface は推薦ハンドラーが必要とするサービスインターフェース。
type RecommendServiceInterface interface {
	Recommend(ctx context.Context, id selection.Identity, domain model.Domain) (*recommend.Result, error)
}

// RecommendHandler は推薦リストのHTTPハンドラー。
type RecommendHandler struct {
	service RecommendServiceInterface
}

// NewRecommendHandler はRecommendHandlerを生成する。
func NewRecommendHandler(service RecommendServiceInterface) *RecommendHandler {
	return &RecommendHandler{service: service}
}

// recommendResponse は推薦リストのレスポンス。
// 縮退した場合もmatchesは表示可能で、noticeに理由が入る。
type recommendResponse struct {
	Domain  model.Domain                  `json:"domain"`
	Matches []scoring.Match               `json:"matches"`
	Notice  *middleware.ErrorResponseBody `json:"notice,omitempty"`
}

// Recommend はリクエスト主体向けの推薦リストを返す。
// GET /api/recommendations/{domain}
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	domain, err := model.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 匿名でも閲覧できるため、主体がなくてもゼロ値で続行する
	id, _ := selection.IdentityFromContext(r.Context())

	result, err := h.service.Recommend(r.Context(), id, domain)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := recommendResponse{
		Domain:  result.Domain,
		Matches: result.Matches,
	}
	if resp.Matches == nil {
		resp.Matches = []scoring.Match{}
	}
	if result.Notice != nil {
		body := middleware.NewErrorResponseBody(result.Notice)
		resp.Notice = &body
	}
	writeJSON(w, http.StatusOK, resp)
}
