package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scholarfind/internal/catalog"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	List(ctx context.Context, domain model.Domain, limit, offset int) (*catalog.Page, error)
	Find(ctx context.Context, domain model.Domain, id int64) (model.Candidate, error)
	Microsite(ctx context.Context, slug, tab string) (*model.MicrositePage, error)
	Resolve(ctx context.Context, domain model.Domain, ids []int64, cache selection.CandidateCache) ([]model.Candidate, error)
}

// CatalogHandler は候補レコード閲覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// catalogListResponse は候補一覧のレスポンス。
type catalogListResponse struct {
	Domain model.Domain      `json:"domain"`
	Items  []model.Candidate `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// micrositeSectionResponse はマイクロサイトのタブ1つ分。
type micrositeSectionResponse struct {
	Tab     model.MicrositeTab `json:"tab"`
	Title   string             `json:"title"`
	Content string             `json:"content"`
}

// micrositeResponse はマイクロサイトのレスポンス。
type micrositeResponse struct {
	model.MicrositeCandidate
	Sections []micrositeSectionResponse `json:"sections"`
}

// List はドメインの候補一覧を返す。
// GET /api/catalog/{domain}?limit=20&offset=0
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	domain, err := model.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	limit, ok := parseIntQuery(r, "limit")
	if !ok {
		writeBadRequest(w, "limitが不正です。")
		return
	}
	offset, ok := parseIntQuery(r, "offset")
	if !ok {
		writeBadRequest(w, "offsetが不正です。")
		return
	}

	page, err := h.service.List(r.Context(), domain, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := page.Items
	if items == nil {
		items = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, catalogListResponse{
		Domain: domain,
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get は候補1件を返す。
// GET /api/catalog/{domain}/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	domain, err := model.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	id, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "候補IDが不正です。")
		return
	}

	c, err := h.service.Find(r.Context(), domain, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Microsite はマイクロサイトとタブコンテンツを返す。
// GET /api/microsites/{slug}?tab=fees
func (h *CatalogHandler) Microsite(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Microsite(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("tab"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	sections := make([]micrositeSectionResponse, 0, len(page.Sections))
	for _, s := range page.Sections {
		sections = append(sections, micrositeSectionResponse{
			Tab:     s.Tab,
			Title:   s.Title,
			Content: s.Content,
		})
	}
	writeJSON(w, http.StatusOK, micrositeResponse{
		MicrositeCandidate: page.MicrositeCandidate,
		Sections:           sections,
	})
}
