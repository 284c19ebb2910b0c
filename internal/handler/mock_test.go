package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scholarfind/internal/auth"
	"github.com/hitoshi/scholarfind/internal/catalog"
	"github.com/hitoshi/scholarfind/internal/kvstore"
	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/profile"
	"github.com/hitoshi/scholarfind/internal/recommend"
	"github.com/hitoshi/scholarfind/internal/repository"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// --- 認証 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*auth.CurrentUser, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*auth.CurrentUser, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, auth.ErrSessionNotFound
}

// --- カタログ ---

type mockCatalogService struct {
	listFn      func(ctx context.Context, domain model.Domain, limit, offset int) (*catalog.Page, error)
	findFn      func(ctx context.Context, domain model.Domain, id int64) (model.Candidate, error)
	micrositeFn func(ctx context.Context, slug, tab string) (*model.MicrositePage, error)
	resolveFn   func(ctx context.Context, domain model.Domain, ids []int64, cache selection.CandidateCache) ([]model.Candidate, error)
}

func (m *mockCatalogService) List(ctx context.Context, domain model.Domain, limit, offset int) (*catalog.Page, error) {
	if m.listFn != nil {
		return m.listFn(ctx, domain, limit, offset)
	}
	return &catalog.Page{Limit: catalog.DefaultPageSize}, nil
}

// Find は既定でID 1〜100のコースが存在するものとして振る舞う。
func (m *mockCatalogService) Find(ctx context.Context, domain model.Domain, id int64) (model.Candidate, error) {
	if m.findFn != nil {
		return m.findFn(ctx, domain, id)
	}
	if domain != model.DomainCourse || id > 100 {
		return nil, model.NewCandidateNotFoundError(domain, id)
	}
	return testCourse(id), nil
}

func (m *mockCatalogService) Microsite(ctx context.Context, slug, tab string) (*model.MicrositePage, error) {
	if m.micrositeFn != nil {
		return m.micrositeFn(ctx, slug, tab)
	}
	return nil, model.NewMicrositeNotFoundError(slug)
}

func (m *mockCatalogService) Resolve(ctx context.Context, domain model.Domain, ids []int64, cache selection.CandidateCache) ([]model.Candidate, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, domain, ids, cache)
	}
	out := make([]model.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, testCourse(id))
	}
	return out, nil
}

func testCourse(id int64) model.CourseCandidate {
	return model.CourseCandidate{ID: id, CollegeName: "College", CourseName: "B.Tech", Degree: "B.Tech"}
}

// --- 推薦 ---

type mockRecommendService struct {
	recommendFn func(ctx context.Context, id selection.Identity, domain model.Domain) (*recommend.Result, error)
}

func (m *mockRecommendService) Recommend(ctx context.Context, id selection.Identity, domain model.Domain) (*recommend.Result, error) {
	if m.recommendFn != nil {
		return m.recommendFn(ctx, id, domain)
	}
	return &recommend.Result{Domain: domain}, nil
}

// --- プロフィール ---

type mockProfileService struct {
	getFn    func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return &model.Profile{UserID: userID}, nil
}

func (m *mockProfileService) Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, in)
	}
	return &model.Profile{UserID: userID, Degree: in.Degree, Program: in.Program, States: in.States, TestScores: in.TestScores}, nil
}

// --- ユーザー ---

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- セッション ---

type mockSessionFinder struct {
	sessions map[string]string // sessionID -> userID
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	userID, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &model.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// --- 選択リスト ---

// memSelectionRepo はrepository.SelectionRepositoryのインメモリ実装。
// insertErrがnilでない場合、Insertはそのエラーを返す。
// beforeInsertはInsertがロックを取る前に呼ばれる。
type memSelectionRepo struct {
	mu           sync.Mutex
	lists        map[string][]int64
	insertErr    error
	beforeInsert func()
}

func newMemSelectionRepo() *memSelectionRepo {
	return &memSelectionRepo{lists: map[string][]int64{}}
}

func memKey(kind model.Kind, domain model.Domain, userID string) string {
	return string(kind) + "/" + string(domain) + "/" + userID
}

func (m *memSelectionRepo) ListIDs(ctx context.Context, kind model.Kind, domain model.Domain, userID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64{}, m.lists[memKey(kind, domain, userID)]...), nil
}

func (m *memSelectionRepo) Insert(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64, limit int) error {
	if m.beforeInsert != nil {
		m.beforeInsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	k := memKey(kind, domain, userID)
	if slices.Contains(m.lists[k], id) {
		return repository.ErrDuplicateKey
	}
	if limit > 0 && len(m.lists[k]) >= limit {
		return repository.ErrCapacityExceeded
	}
	m.lists[k] = append(m.lists[k], id)
	return nil
}

func (m *memSelectionRepo) Delete(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(kind, domain, userID)
	out := m.lists[k][:0]
	for _, v := range m.lists[k] {
		if v != id {
			out = append(out, v)
		}
	}
	m.lists[k] = out
	return nil
}

func (m *memSelectionRepo) DeleteAll(ctx context.Context, kind model.Kind, domain model.Domain, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, memKey(kind, domain, userID))
	return nil
}

func (m *memSelectionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

func newTestRegistry(repo *memSelectionRepo) *selection.Registry {
	return selection.NewRegistry(selection.NewFactory(repo, kvstore.NewMemory(), nil, nil), time.Minute)
}

// --- ヘルパー ---

// withURLParams はchiのURLパラメータをリクエストに設定する。
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withIdentity(r *http.Request, id selection.Identity) *http.Request {
	return r.WithContext(selection.WithIdentity(r.Context(), id))
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw %q)", err, w.Body.String())
	}
	return body
}
