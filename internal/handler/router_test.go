package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/scholarfind/internal/metrics"
	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/model"
)

const (
	testSessionID = "router-session"
	testUserID    = "router-user"
	testCSRF      = "router-csrf"
)

type testRouter struct {
	http.Handler
	repo *memSelectionRepo
	reg  *prometheus.Registry
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	repo := newMemSelectionRepo()
	reg := prometheus.NewRegistry()
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(600, 600))
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		MetricsGatherer:  reg,
		StatusRecorder:   metrics.NewCollector(reg),
		SessionFinder:    &mockSessionFinder{sessions: map[string]string{testSessionID: testUserID}},
		RateLimiter:      rl,
		AuthService:      &mockAuthService{},
		AuthConfig:       testAuthConfig(),
		CatalogService:   &mockCatalogService{},
		RecommendService: &mockRecommendService{},
		Selections:       newTestRegistry(repo),
		ProfileService:   &mockProfileService{},
		UserService:      &mockUserService{},
	}
	return &testRouter{Handler: NewRouter(deps), repo: repo, reg: reg}
}

// do はCSRFトークン付きでリクエストを送る。
func (r *testRouter) do(method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRF})
	req.Header.Set("X-CSRF-Token", testCSRF)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/api/csrf-token", http.StatusOK},
		{"/auth/me", http.StatusUnauthorized},
		{"/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("全ルートにセキュリティヘッダーが付与されるべき")
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "scholarfind_http_status_total") {
		t.Errorf("metrics status = %d, body %s", w.Code, w.Body.String())
	}
}

// TestRouter_AnonymousCompareFlow は匿名端末が端末Cookieで比較リストを使えることを検証する。
func TestRouter_AnonymousCompareFlow(t *testing.T) {
	r := newTestRouter(t)

	w := r.do(http.MethodGet, "/api/selections/compare/courses")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	var device *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "device_id" {
			device = c
		}
	}
	if device == nil {
		t.Fatal("匿名アクセスで端末Cookieが発行されるべき")
	}

	for _, id := range []string{"1", "2", "3"} {
		if w := r.do(http.MethodPost, "/api/selections/compare/courses/"+id+"/toggle", device); w.Code != http.StatusOK {
			t.Fatalf("toggle %s status = %d (body %s)", id, w.Code, w.Body.String())
		}
	}
	w = r.do(http.MethodPost, "/api/selections/compare/courses/4/toggle", device)
	if w.Code != http.StatusConflict {
		t.Fatalf("4件目は409: status = %d", w.Code)
	}

	w = r.do(http.MethodGet, "/api/selections/compare/courses/records", device)
	var records struct {
		Items []model.CourseCandidate `json:"items"`
	}
	if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(records.Items) != 3 {
		t.Errorf("records = %+v", records.Items)
	}

	// 匿名の選択はリモートストアに書き込まない
	if len(r.repo.lists) != 0 {
		t.Errorf("remote lists = %v, want none", r.repo.lists)
	}

	// 別の端末からは見えない
	w = r.do(http.MethodGet, "/api/selections/compare/courses")
	var state selectionResponse
	json.NewDecoder(w.Body).Decode(&state)
	if state.Count != 0 {
		t.Errorf("別端末のリストは空であるべき: %+v", state)
	}
}

func TestRouter_LoggedInSelectionUsesRemoteStore(t *testing.T) {
	r := newTestRouter(t)
	session := &http.Cookie{Name: "session_id", Value: testSessionID}

	// mockCatalogServiceは奨学金を持たない
	if w := r.do(http.MethodPost, "/api/selections/saved/scholarship/5/toggle", session); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if w := r.do(http.MethodPost, "/api/selections/saved/course/5/toggle", session); w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if ids := r.repo.lists[memKey(model.KindShortlist, model.DomainCourse, testUserID)]; len(ids) != 1 || ids[0] != 5 {
		t.Errorf("remote ids = %v, want [5]", ids)
	}

	if w := r.do(http.MethodDelete, "/api/users/me", session); w.Code != http.StatusNoContent {
		t.Fatalf("withdraw status = %d", w.Code)
	}
}

func TestRouter_CSRFRequiredForMutations(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/selections/compare/course/1/toggle", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRouter_ProfileRequiresLogin(t *testing.T) {
	r := newTestRouter(t)

	if w := r.do(http.MethodGet, "/api/profile"); w.Code != http.StatusUnauthorized {
		t.Errorf("匿名は401: status = %d", w.Code)
	}
	w := r.do(http.MethodGet, "/api/profile", &http.Cookie{Name: "session_id", Value: testSessionID})
	if w.Code != http.StatusOK {
		t.Errorf("ログイン済みは200: status = %d", w.Code)
	}
}

func TestRouter_BrowsingRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/catalog/course", http.StatusOK},
		{"/api/catalog/course/3", http.StatusOK},
		{"/api/catalog/fees", http.StatusBadRequest},
		{"/api/microsites/unknown", http.StatusNotFound},
		{"/api/recommendations/scholarships", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := r.do(http.MethodGet, tt.path); w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}
