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

	"github.com/hitoshi/scholarfind/internal/auth"
	"github.com/hitoshi/scholarfind/internal/model"
)

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	}
}

func findResponseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login_RedirectsToOAuthURL(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if !strings.Contains(resp.Header.Get("Location"), "accounts.google.com") {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
	state := findResponseCookie(resp, oauthStateCookie)
	if state == nil || state.Value != gotState || !state.HttpOnly {
		t.Errorf("state cookie = %+v, want HttpOnly with %q", state, gotState)
	}
}

func TestAuthHandler_Callback_Success_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "test-code" {
				t.Errorf("code = %q", code)
			}
			return &model.Session{ID: "session-id-abc", UserID: "user-id-123", ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "test-state"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:3000" {
		t.Errorf("Location = %q", loc)
	}
	session := findResponseCookie(resp, sessionCookieName)
	if session == nil || session.Value != "session-id-abc" || session.MaxAge != 86400 || !session.HttpOnly {
		t.Errorf("session cookie = %+v", session)
	}
	if state := findResponseCookie(resp, oauthStateCookie); state == nil || state.MaxAge >= 0 {
		t.Errorf("state cookieは削除されるべき: %+v", state)
	}
}

func TestAuthHandler_Callback_Errors(t *testing.T) {
	failing := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, errors.New("token exchange failed")
		},
	}

	tests := []struct {
		name   string
		url    string
		cookie string
		status int
		code   string
	}{
		{"state不一致", "/auth/google/callback?code=c&state=a", "b", http.StatusBadRequest, "INVALID_OAUTH_STATE"},
		{"stateなし", "/auth/google/callback?code=c", "", http.StatusBadRequest, "INVALID_OAUTH_STATE"},
		{"コードなし", "/auth/google/callback?state=s", "s", http.StatusBadRequest, "INVALID_REQUEST"},
		{"認証失敗", "/auth/google/callback?code=c&state=s", "s", http.StatusBadGateway, "AUTH_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(failing, testAuthConfig())
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if code := decodeErrorBody(t, w).Code; code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	tests := []struct {
		name      string
		cookie    bool
		logoutErr error
		wantCall  bool
	}{
		{"セッションあり", true, nil, true},
		{"削除失敗でもCookieはクリア", true, errors.New("db down"), true},
		{"セッションなし", false, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockAuthService{
				logoutFn: func(ctx context.Context, sessionID string) error {
					called = true
					if sessionID != "session-123" {
						t.Errorf("sessionID = %q", sessionID)
					}
					return tt.logoutErr
				},
			}
			h := NewAuthHandler(svc, testAuthConfig())
			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-123"})
			}
			w := httptest.NewRecorder()
			h.Logout(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusTemporaryRedirect {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if called != tt.wantCall {
				t.Errorf("Logout called = %v, want %v", called, tt.wantCall)
			}
			if c := findResponseCookie(resp, sessionCookieName); c == nil || c.MaxAge >= 0 {
				t.Errorf("session cookieは削除されるべき: %+v", c)
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*auth.CurrentUser, error) {
			switch sessionID {
			case "valid":
				return &auth.CurrentUser{
					User:            &model.User{ID: "user-me", Email: "me@example.com", Name: "Me"},
					ProfileComplete: true,
				}, nil
			case "broken":
				return nil, errors.New("db down")
			default:
				return nil, auth.ErrSessionNotFound
			}
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	tests := []struct {
		name    string
		session string
		status  int
	}{
		{"ログイン中", "valid", http.StatusOK},
		{"Cookieなし", "", http.StatusUnauthorized},
		{"期限切れ", "expired", http.StatusUnauthorized},
		{"内部エラー", "broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.session != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.session})
			}
			w := httptest.NewRecorder()
			h.Me(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp meResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			want := meResponse{ID: "user-me", Email: "me@example.com", Name: "Me", ProfileComplete: true}
			if resp != want {
				t.Errorf("resp = %+v, want %+v", resp, want)
			}
		})
	}
}
