package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wellbeat/internal/middleware"
	"github.com/hitoshi/wellbeat/internal/model"
)

// TrackingServiceInterface はセルフトラッキングハンドラーが必要とするサービスインターフェース。
type TrackingServiceInterface interface {
	ListConditions(ctx context.Context, userID string) ([]model.Condition, error)
	AddCondition(ctx context.Context, userID, name, description string) (*model.Condition, error)
	DeleteCondition(ctx context.Context, userID, conditionID string) error
	ListMedications(ctx context.Context, userID string) ([]model.Medication, error)
	AddMedication(ctx context.Context, userID, name, dosage string) (*model.Medication, error)
	DeleteMedication(ctx context.Context, userID, medicationID string) error
	ToggleMedication(ctx context.Context, userID, medicationID string) (bool, error)
}

// TrackingHandler は体調・服薬トラッキングのHTTPハンドラー。
type TrackingHandler struct {
	service TrackingServiceInterface
}

// NewTrackingHandler はTrackingHandlerを生成する。
func NewTrackingHandler(service TrackingServiceInterface) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// addConditionRequest は体調レコード作成リクエストのボディ。
type addConditionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// addMedicationRequest は服薬レコード作成リクエストのボディ。
type addMedicationRequest struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

// ListConditions は体調レコード一覧を返す。
// GET /api/mental-health/conditions
func (h *TrackingHandler) ListConditions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	conditions, err := h.service.ListConditions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", conditions)
}

// AddCondition は体調レコードを作成する。
// POST /api/mental-health/conditions
func (h *TrackingHandler) AddCondition(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req addConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "nameは必須です。",
			Category: "validation",
			Action:   "nameを指定してください。",
		})
		return
	}

	condition, err := h.service.AddCondition(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "体調レコードを作成しました。", condition)
}

// DeleteCondition は体調レコードを削除する。
// DELETE /api/mental-health/conditions/{id}
func (h *TrackingHandler) DeleteCondition(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}
	conditionID := chi.URLParam(r, "id")

	if err := h.service.DeleteCondition(r.Context(), userID, conditionID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "体調レコードを削除しました。", nil)
}

// ListMedications は服薬レコード一覧を返す。
// GET /api/mental-health/medications
func (h *TrackingHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	medications, err := h.service.ListMedications(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "", medications)
}

// AddMedication は服薬レコードを作成する。
// POST /api/mental-health/medications
func (h *TrackingHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req addMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "nameは必須です。",
			Category: "validation",
			Action:   "nameを指定してください。",
		})
		return
	}

	medication, err := h.service.AddMedication(r.Context(), userID, req.Name, req.Dosage)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "服薬レコードを作成しました。", medication)
}

// DeleteMedication は服薬レコードを削除する。
// DELETE /api/mental-health/medications/{id}
func (h *TrackingHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}
	medicationID := chi.URLParam(r, "id")

	if err := h.service.DeleteMedication(r.Context(), userID, medicationID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "服薬レコードを削除しました。", nil)
}

// ToggleMedication はactiveフラグを反転する。
// PUT /api/mental-health/medications/{id}/toggle
func (h *TrackingHandler) ToggleMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}
	medicationID := chi.URLParam(r, "id")

	active, err := h.service.ToggleMedication(r.Context(), userID, medicationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "服薬レコードを更新しました。", map[string]bool{
		"active": active,
	})
}
