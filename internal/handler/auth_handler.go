package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/wellbeat/internal/middleware"
	"github.com/hitoshi/wellbeat/internal/model"
)

// AuthServiceInterface は認可ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginAuthorization(ctx context.Context, provider model.Provider, platform model.Platform) (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) (*model.Session, model.Platform, error)
	Logout(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認可ハンドラーの設定。
type AuthHandlerConfig struct {
	// MobileRedirectURL はモバイルアプリに制御を戻すカスタムスキームURL。
	MobileRedirectURL string
}

// AuthHandler はOAuth認可フローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Authorize は認可フローを開始し、プロバイダーの認可URLへリダイレクトする。
// GET /auth/authorize?provider=google|spotify&platform=web|mobile
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(r.URL.Query().Get("provider"))
	platform := model.Platform(r.URL.Query().Get("platform"))

	authURL, err := h.service.BeginAuthorization(r.Context(), provider, platform)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback はプロバイダーからのコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
// webはJSONでuser_idを返し、mobileはカスタムスキームへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "codeまたはstateパラメータがありません。",
			Category: "validation",
			Action:   "認可フローを最初からやり直してください。",
		})
		return
	}

	session, platform, err := h.service.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if platform == model.PlatformMobile {
		redirect := h.config.MobileRedirectURL + "?user_id=" + url.QueryEscape(session.UserID)
		http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "認可が完了しました。", map[string]string{
		"user_id": session.UserID,
	})
}

// Logout はセッションを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "ログアウトしました。", nil)
}
