package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/wellbeat/internal/model"
)

// mockTrackingService はTrackingServiceInterfaceのモック実装。
type mockTrackingService struct {
	listConditionsFn   func(ctx context.Context, userID string) ([]model.Condition, error)
	addConditionFn     func(ctx context.Context, userID, name, description string) (*model.Condition, error)
	deleteConditionFn  func(ctx context.Context, userID, conditionID string) error
	listMedicationsFn  func(ctx context.Context, userID string) ([]model.Medication, error)
	addMedicationFn    func(ctx context.Context, userID, name, dosage string) (*model.Medication, error)
	deleteMedicationFn func(ctx context.Context, userID, medicationID string) error
	toggleMedicationFn func(ctx context.Context, userID, medicationID string) (bool, error)
}

func (m *mockTrackingService) ListConditions(ctx context.Context, userID string) ([]model.Condition, error) {
	if m.listConditionsFn != nil {
		return m.listConditionsFn(ctx, userID)
	}
	return []model.Condition{}, nil
}

func (m *mockTrackingService) AddCondition(ctx context.Context, userID, name, description string) (*model.Condition, error) {
	if m.addConditionFn != nil {
		return m.addConditionFn(ctx, userID, name, description)
	}
	return &model.Condition{ID: "cond-1", UserID: userID, Name: name, Description: description}, nil
}

func (m *mockTrackingService) DeleteCondition(ctx context.Context, userID, conditionID string) error {
	if m.deleteConditionFn != nil {
		return m.deleteConditionFn(ctx, userID, conditionID)
	}
	return nil
}

func (m *mockTrackingService) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	if m.listMedicationsFn != nil {
		return m.listMedicationsFn(ctx, userID)
	}
	return []model.Medication{}, nil
}

func (m *mockTrackingService) AddMedication(ctx context.Context, userID, name, dosage string) (*model.Medication, error) {
	if m.addMedicationFn != nil {
		return m.addMedicationFn(ctx, userID, name, dosage)
	}
	return &model.Medication{ID: "med-1", UserID: userID, Name: name, Dosage: dosage, Active: true}, nil
}

func (m *mockTrackingService) DeleteMedication(ctx context.Context, userID, medicationID string) error {
	if m.deleteMedicationFn != nil {
		return m.deleteMedicationFn(ctx, userID, medicationID)
	}
	return nil
}

func (m *mockTrackingService) ToggleMedication(ctx context.Context, userID, medicationID string) (bool, error) {
	if m.toggleMedicationFn != nil {
		return m.toggleMedicationFn(ctx, userID, medicationID)
	}
	return true, nil
}

func TestTrackingHandler_ListConditions(t *testing.T) {
	svc := &mockTrackingService{
		listConditionsFn: func(ctx context.Context, userID string) ([]model.Condition, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return []model.Condition{
				{ID: "cond-1", Name: "頭痛", CreatedAt: time.Now()},
				{ID: "cond-2", Name: "倦怠感", CreatedAt: time.Now()},
			}, nil
		},
	}
	h := NewTrackingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/mental-health/conditions", nil), "user-1")
	w := httptest.NewRecorder()

	h.ListConditions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := parseSuccessResponse(t, w)
	items, ok := resp.Data.([]any)
	if !ok || len(items) != 2 {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestTrackingHandler_AddCondition(t *testing.T) {
	h := NewTrackingHandler(&mockTrackingService{})

	body := strings.NewReader(`{"name":"頭痛","description":"午後から"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/mental-health/conditions", body), "user-1")
	w := httptest.NewRecorder()

	h.AddCondition(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	resp := parseSuccessResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %+v", resp.Data)
	}
	if data["name"] != "頭痛" {
		t.Errorf("name = %v, want 頭痛", data["name"])
	}
}

func TestTrackingHandler_AddCondition_MissingName(t *testing.T) {
	h := NewTrackingHandler(&mockTrackingService{})

	body := strings.NewReader(`{"description":"名前なし"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/mental-health/conditions", body), "user-1")
	w := httptest.NewRecorder()

	h.AddCondition(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTrackingHandler_DeleteCondition_NotFound(t *testing.T) {
	svc := &mockTrackingService{
		deleteConditionFn: func(ctx context.Context, userID, conditionID string) error {
			if conditionID != "missing" {
				t.Errorf("conditionID = %q, want missing", conditionID)
			}
			return model.NewConditionNotFoundError(conditionID)
		},
	}
	h := NewTrackingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/mental-health/conditions/missing", nil), "user-1")
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.DeleteCondition(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	respBody := parseAPIErrorResponse(t, w)
	if respBody["code"] != model.ErrCodeConditionNotFound {
		t.Errorf("code = %q, want CONDITION_NOT_FOUND", respBody["code"])
	}
}

func TestTrackingHandler_AddMedication(t *testing.T) {
	h := NewTrackingHandler(&mockTrackingService{})

	body := strings.NewReader(`{"name":"ビタミンD","dosage":"1000IU"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/mental-health/medications", body), "user-1")
	w := httptest.NewRecorder()

	h.AddMedication(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	resp := parseSuccessResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %+v", resp.Data)
	}
	if data["active"] != true {
		t.Errorf("active = %v, want true", data["active"])
	}
}

func TestTrackingHandler_ToggleMedication(t *testing.T) {
	svc := &mockTrackingService{
		toggleMedicationFn: func(ctx context.Context, userID, medicationID string) (bool, error) {
			if medicationID != "med-1" {
				t.Errorf("medicationID = %q, want med-1", medicationID)
			}
			return false, nil
		},
	}
	h := NewTrackingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/mental-health/medications/med-1/toggle", nil), "user-1")
	req = withChiURLParam(req, "id", "med-1")
	w := httptest.NewRecorder()

	h.ToggleMedication(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := parseSuccessResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %+v", resp.Data)
	}
	if data["active"] != false {
		t.Errorf("active = %v, want false", data["active"])
	}
}

func TestTrackingHandler_ToggleMedication_NotFound(t *testing.T) {
	svc := &mockTrackingService{
		toggleMedicationFn: func(ctx context.Context, userID, medicationID string) (bool, error) {
			return false, model.NewMedicationNotFoundError(medicationID)
		},
	}
	h := NewTrackingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/mental-health/medications/missing/toggle", nil), "user-1")
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.ToggleMedication(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestTrackingHandler_Unauthenticated(t *testing.T) {
	h := NewTrackingHandler(&mockTrackingService{})

	req := httptest.NewRequest(http.MethodGet, "/api/mental-health/medications", nil)
	w := httptest.NewRecorder()

	h.ListMedications(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
