package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/wellbeat/internal/dashboard"
	"github.com/hitoshi/wellbeat/internal/middleware"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	GetLive(ctx context.Context, userID string) (*dashboard.Payload, error)
	GetCached(ctx context.Context, userID string) (*dashboard.Payload, error)
	SyncNow(ctx context.Context, userID string) error
}

// DashboardHandler はダッシュボード集約のHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetLive はライブのダッシュボードペイロードを返す。
// GET /api/dashboard
func (h *DashboardHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	payload, err := h.service.GetLive(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", payload)
}

// GetCached はスナップショットのみからダッシュボードペイロードを返す。
// GET /api/dashboard/cached
func (h *DashboardHandler) GetCached(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	payload, err := h.service.GetCached(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", payload)
}

// SyncNow は両プロバイダーの強制同期を実行する。
// プロバイダー単位の失敗は縮退済みのため、受理された同期は常に200を返す。
// POST /api/dashboard/sync
func (h *DashboardHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.SyncNow(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "同期が完了しました。", nil)
}
