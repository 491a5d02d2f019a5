package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wellbeat/internal/middleware"
	"github.com/hitoshi/wellbeat/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	beginAuthorizationFn    func(ctx context.Context, provider model.Provider, platform model.Platform) (string, error)
	completeAuthorizationFn func(ctx context.Context, code, state string) (*model.Session, model.Platform, error)
	logoutFn                func(ctx context.Context, userID string) error
}

func (m *mockAuthService) BeginAuthorization(ctx context.Context, provider model.Provider, platform model.Platform) (string, error) {
	if m.beginAuthorizationFn != nil {
		return m.beginAuthorizationFn(ctx, provider, platform)
	}
	return "https://provider.example/authorize?state=state-1", nil
}

func (m *mockAuthService) CompleteAuthorization(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
	if m.completeAuthorizationFn != nil {
		return m.completeAuthorizationFn(ctx, code, state)
	}
	return &model.Session{UserID: "user-1"}, model.PlatformWeb, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID)
	}
	return nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// parseSuccessResponse はレスポンスボディから成功エンベロープをパースするヘルパー。
func parseSuccessResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var result apiResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{MobileRedirectURL: "wellbeat://auth-success"}
}

// --- GET /auth/authorize テスト ---

func TestAuthHandler_Authorize_RedirectsToProvider(t *testing.T) {
	svc := &mockAuthService{
		beginAuthorizationFn: func(ctx context.Context, provider model.Provider, platform model.Platform) (string, error) {
			if provider != model.ProviderGoogle {
				t.Errorf("provider = %q, want google", provider)
			}
			if platform != model.PlatformWeb {
				t.Errorf("platform = %q, want web", platform)
			}
			return "https://accounts.google.com/o/oauth2/auth?state=state-1", nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/authorize?provider=google&platform=web", nil)
	w := httptest.NewRecorder()

	h.Authorize(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "state=state-1") {
		t.Errorf("Location = %q", loc)
	}
}

func TestAuthHandler_Authorize_UnsupportedProvider(t *testing.T) {
	svc := &mockAuthService{
		beginAuthorizationFn: func(ctx context.Context, provider model.Provider, platform model.Platform) (string, error) {
			return "", model.NewUnsupportedProviderError(string(provider))
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/authorize?provider=github", nil)
	w := httptest.NewRecorder()

	h.Authorize(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeUnsupportedProvider {
		t.Errorf("code = %q, want UNSUPPORTED_PROVIDER", body["code"])
	}
}

// --- GET /auth/callback テスト ---

func TestAuthHandler_Callback_WebReturnsUserID(t *testing.T) {
	svc := &mockAuthService{
		completeAuthorizationFn: func(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
			if code != "code-1" || state != "state-1" {
				t.Errorf("code/state = %q/%q", code, state)
			}
			return &model.Session{UserID: "user-42"}, model.PlatformWeb, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := parseSuccessResponse(t, w)
	if !resp.Success {
		t.Error("success should be true")
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["user_id"] != "user-42" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestAuthHandler_Callback_MobileRedirectsToScheme(t *testing.T) {
	svc := &mockAuthService{
		completeAuthorizationFn: func(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
			return &model.Session{UserID: "user-42"}, model.PlatformMobile, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "wellbeat://auth-success?user_id=user-42") {
		t.Errorf("Location = %q", loc)
	}
}

func TestAuthHandler_Callback_MissingParams(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_Callback_InvalidState(t *testing.T) {
	svc := &mockAuthService{
		completeAuthorizationFn: func(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
			return nil, "", model.NewInvalidStateError()
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=reused-state", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInvalidState {
		t.Errorf("code = %q, want INVALID_STATE", body["code"])
	}
}

func TestAuthHandler_Callback_TokenExchangeFailed(t *testing.T) {
	svc := &mockAuthService{
		completeAuthorizationFn: func(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
			return nil, "", model.NewTokenExchangeError(model.ProviderGoogle, "invalid_grant")
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad&state=state-1", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	// トークン交換失敗はゲートウェイエラーではなく400で返す
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeTokenExchangeFailed {
		t.Errorf("code = %q, want TOKEN_EXCHANGE_FAILED", body["code"])
	}
}

// --- POST /auth/logout テスト ---

func TestAuthHandler_Logout(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID string) error {
			loggedOut = userID
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := withUserID(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "user-1")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if loggedOut != "user-1" {
		t.Errorf("logged out user = %q, want user-1", loggedOut)
	}
}

func TestAuthHandler_Logout_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
