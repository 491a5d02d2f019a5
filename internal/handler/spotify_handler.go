package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/wellbeat/internal/middleware"
	"github.com/hitoshi/wellbeat/internal/model"
)

// SpotifyAuthInterface はSpotify連携フローのサービスインターフェース。
type SpotifyAuthInterface interface {
	SpotifyAuthorizeURL(ctx context.Context, platform model.Platform) (authURL, state string, err error)
	LinkSpotify(ctx context.Context, userID, code, state string) (*model.TokenSet, error)
}

// SpotifyQueryInterface は再生データ取得のサービスインターフェース。
type SpotifyQueryInterface interface {
	CurrentTrack(ctx context.Context, userID string) (*model.Track, error)
	RecentTracks(ctx context.Context, userID string, limit int) ([]model.Track, error)
}

// SpotifyHandler はSpotify連携と再生データのHTTPハンドラー。
type SpotifyHandler struct {
	auth  SpotifyAuthInterface
	query SpotifyQueryInterface
}

// NewSpotifyHandler はSpotifyHandlerを生成する。
func NewSpotifyHandler(auth SpotifyAuthInterface, query SpotifyQueryInterface) *SpotifyHandler {
	return &SpotifyHandler{
		auth:  auth,
		query: query,
	}
}

// AuthorizeURL はモバイル主導フロー向けの認可URLとstateを返す。
// GET /api/spotify/authorize-url?platform=web|mobile
func (h *SpotifyHandler) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	platform := model.Platform(r.URL.Query().Get("platform"))

	authURL, state, err := h.auth.SpotifyAuthorizeURL(r.Context(), platform)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", map[string]string{
		"auth_url": authURL,
		"state":    state,
	})
}

// exchangeTokenRequest はSpotify連携リクエストのボディ。
type exchangeTokenRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// ExchangeToken は認可コードを交換し、呼び出し元のセッションにSpotifyを紐付ける。
// POST /api/spotify/exchange-token
func (h *SpotifyHandler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req exchangeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}
	if req.Code == "" || req.State == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "codeとstateは必須です。",
			Category: "validation",
			Action:   "認可フローを最初からやり直してください。",
		})
		return
	}

	blob, err := h.auth.LinkSpotify(r.Context(), userID, req.Code, req.State)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := map[string]any{"scopes": blob.Scopes}
	if blob.Expiry != nil {
		data["expires_at"] = blob.Expiry.UTC().Format(time.RFC3339)
	}
	writeSuccessResponse(w, http.StatusOK, "Spotifyを連携しました。", data)
}

// CurrentTrack は再生中のトラックを返す。再生していない場合はdataがnullになる。
// GET /api/spotify/current-track
func (h *SpotifyHandler) CurrentTrack(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	track, err := h.query.CurrentTrack(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", track)
}

// RecentTracks は最近再生したトラック一覧を返す。
// GET /api/spotify/recent-tracks?limit=5
func (h *SpotifyHandler) RecentTracks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "limitは正の整数で指定してください。",
				Category: "validation",
				Action:   "limitパラメータを確認してください。",
			})
			return
		}
		limit = parsed
	}

	tracks, err := h.query.RecentTracks(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", tracks)
}
