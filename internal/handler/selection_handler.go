package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// CandidateFinder は候補レコードの存在確認と一括解決を提供する。
type CandidateFinder interface {
	Find(ctx context.Context, domain model.Domain, id int64) (model.Candidate, error)
	Resolve(ctx context.Context, domain model.Domain, ids []int64, cache selection.CandidateCache) ([]model.Candidate, error)
}

// SelectionRegistry は主体ごとの同期器を提供する。
type SelectionRegistry interface {
	Get(id selection.Identity, key selection.Key) (*selection.Synchronizer, error)
	CandidateCacheFor(id selection.Identity, key selection.Key) selection.CandidateCache
}

// SelectionHandler は比較・保存リストのHTTPハンドラー。
type SelectionHandler struct {
	registry   SelectionRegistry
	candidates CandidateFinder
}

// NewSelectionHandler はSelectionHandlerを生成する。
func NewSelectionHandler(registry SelectionRegistry, candidates CandidateFinder) *SelectionHandler {
	return &SelectionHandler{registry: registry, candidates: candidates}
}

// selectionResponse は選択リストの状態。
type selectionResponse struct {
	Kind     model.Kind   `json:"kind"`
	Domain   model.Domain `json:"domain"`
	IDs      []int64      `json:"ids"`
	Count    int          `json:"count"`
	Capacity int          `json:"capacity,omitempty"`
}

// toggleResponse はトグル結果。
type toggleResponse struct {
	selectionResponse
	Added bool  `json:"added"`
	ID    int64 `json:"id"`
}

// recordsResponse は選択リストの候補レコード。
type recordsResponse struct {
	Kind   model.Kind        `json:"kind"`
	Domain model.Domain      `json:"domain"`
	Items  []model.Candidate `json:"items"`
}

// synchronizer はリクエストの主体とURLパラメータから同期器を取得し、読み込み済みにして返す。
// エラー時はレスポンスを書き込み、nilを返す。
func (h *SelectionHandler) synchronizer(w http.ResponseWriter, r *http.Request) (*selection.Synchronizer, selection.Identity, selection.Key) {
	id, ok := selection.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return nil, id, selection.Key{}
	}

	key, err := selection.ParseKey(chi.URLParam(r, "kind"), chi.URLParam(r, "domain"))
	if err != nil {
		handleServiceError(w, err)
		return nil, id, key
	}

	s, err := h.registry.Get(id, key)
	if err != nil {
		handleServiceError(w, err)
		return nil, id, key
	}
	s.Load(r.Context())
	return s, id, key
}

func newSelectionResponse(key selection.Key, ids []int64) selectionResponse {
	if ids == nil {
		ids = []int64{}
	}
	return selectionResponse{
		Kind:     key.Kind,
		Domain:   key.Domain,
		IDs:      ids,
		Count:    len(ids),
		Capacity: key.Capacity(),
	}
}

// GetSelection は選択中の候補IDと件数を返す。
// GET /api/selections/{kind}/{domain}
func (h *SelectionHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	s, _, key := h.synchronizer(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, newSelectionResponse(key, s.Current()))
}

// Toggle は候補の選択状態を反転する。
// POST /api/selections/{kind}/{domain}/{id}/toggle
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "候補IDが不正です。")
		return
	}

	s, _, key := h.synchronizer(w, r)
	if s == nil {
		return
	}

	c, err := h.candidates.Find(r.Context(), key.Domain, candidateID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := s.Toggle(r.Context(), c)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{
		selectionResponse: newSelectionResponse(key, result.IDs),
		Added:             result.Added,
		ID:                candidateID,
	})
}

// Clear は選択リストを空にする。
// DELETE /api/selections/{kind}/{domain}
func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, _, _ := h.synchronizer(w, r)
	if s == nil {
		return
	}
	if err := s.ClearAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Records は選択中の候補レコードを選択順で返す。
// GET /api/selections/{kind}/{domain}/records
func (h *SelectionHandler) Records(w http.ResponseWriter, r *http.Request) {
	s, id, key := h.synchronizer(w, r)
	if s == nil {
		return
	}

	items, err := h.candidates.Resolve(r.Context(), key.Domain, s.Current(), h.registry.CandidateCacheFor(id, key))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if items == nil {
		items = []model.Candidate{}
	}

	writeJSON(w, http.StatusOK, recordsResponse{
		Kind:   key.Kind,
		Domain: key.Domain,
		Items:  items,
	})
}
