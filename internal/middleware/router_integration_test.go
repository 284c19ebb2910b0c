package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scholarfind/internal/selection"
)

// newChainRouter は本番と同じ順序でミドルウェアを組んだテスト用ルーターを返す。
func newChainRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := validSessionRepo("router-test-session", "user-router-test")
	csrfConfig := CSRFConfig{}
	cfg := testRateLimiterConfig()
	cfg.GeneralBurst = 100
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)

	writeIdentity := func(w http.ResponseWriter, r *http.Request) {
		id, _ := selection.IdentityFromContext(r.Context())
		json.NewEncoder(w).Encode(map[string]string{"user_id": id.UserID, "device_id": id.DeviceID})
	}

	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(NewIdentityMiddleware(repo, IdentityConfig{}))
		r.Use(rl.GeneralMiddleware())
		r.Use(NewCSRFMiddleware(csrfConfig))
		r.Get("/api/selections", writeIdentity)
		r.With(rl.ToggleMiddleware()).Post("/api/selections/toggle", writeIdentity)
	})

	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(repo))
		r.Use(rl.GeneralMiddleware())
		r.Use(NewCSRFMiddleware(csrfConfig))
		r.Put("/api/profile", writeIdentity)
	})
	return r
}

func TestRouterIntegration_MiddlewareChain(t *testing.T) {
	router := newChainRouter(t)
	session := &http.Cookie{Name: "session_id", Value: "router-test-session"}
	csrfCookie := &http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"}

	tests := []struct {
		name       string
		method     string
		path       string
		cookies    []*http.Cookie
		csrf       bool
		wantStatus int
		wantUser   string
		wantDevice bool
	}{
		{"CSRFトークンは認証不要", http.MethodGet, "/api/csrf-token", nil, false, http.StatusOK, "", false},
		{"匿名GETは端末identity", http.MethodGet, "/api/selections", nil, false, http.StatusOK, "", true},
		{"ログインGETはユーザー", http.MethodGet, "/api/selections", []*http.Cookie{session}, false, http.StatusOK, "user-router-test", false},
		{"匿名トグルはCSRF必須", http.MethodPost, "/api/selections/toggle", nil, false, http.StatusForbidden, "", false},
		{"匿名トグルCSRFあり", http.MethodPost, "/api/selections/toggle", []*http.Cookie{csrfCookie}, true, http.StatusOK, "", true},
		{"ログイントグル", http.MethodPost, "/api/selections/toggle", []*http.Cookie{session, csrfCookie}, true, http.StatusOK, "user-router-test", false},
		{"プロフィールは匿名不可", http.MethodPut, "/api/profile", []*http.Cookie{csrfCookie}, true, http.StatusUnauthorized, "", false},
		{"プロフィールはセッション後にCSRF", http.MethodPut, "/api/profile", []*http.Cookie{session}, false, http.StatusForbidden, "", false},
		{"プロフィール更新", http.MethodPut, "/api/profile", []*http.Cookie{session, csrfCookie}, true, http.StatusOK, "user-router-test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			if tt.csrf {
				req.Header.Set(csrfHeaderName, "test-csrf-token")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK || tt.path == "/api/csrf-token" {
				return
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body["user_id"] != tt.wantUser {
				t.Errorf("user_id = %q, want %q", body["user_id"], tt.wantUser)
			}
			if (body["device_id"] != "") != tt.wantDevice {
				t.Errorf("device_id = %q, want present=%v", body["device_id"], tt.wantDevice)
			}
		})
	}
}

// TestRouterIntegration_ToggleLimitedIndependently はトグル制限が閲覧を止めないことを検証する。
func TestRouterIntegration_ToggleLimitedIndependently(t *testing.T) {
	router := newChainRouter(t)
	session := &http.Cookie{Name: "session_id", Value: "router-test-session"}
	csrfCookie := &http.Cookie{Name: csrfCookieName, Value: "tok"}

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/selections/toggle", nil)
		req.AddCookie(session)
		req.AddCookie(csrfCookie)
		req.Header.Set(csrfHeaderName, "tok")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("statuses = %v, want third toggle 429", statuses)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/selections", nil)
	req.AddCookie(session)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", w.Code)
	}
}
