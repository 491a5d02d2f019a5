// Package tracking は体調・服薬のセルフトラッキングレコードのドメインロジックを提供する。
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/wellbeat/internal/model"
	"github.com/hitoshi/wellbeat/internal/repository"
)

// Service はセルフトラッキングのサービス層。
// レコードは認証済みユーザーに閉じたプライベートデータで、共有機能はない。
type Service struct {
	repo repository.TrackingRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.TrackingRepository) *Service {
	return &Service{repo: repo}
}

// ListConditions はユーザーの体調レコード一覧を返す。
func (s *Service) ListConditions(ctx context.Context, userID string) ([]model.Condition, error) {
	conditions, err := s.repo.ListConditions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("体調レコードの取得に失敗しました: %w", err)
	}
	if conditions == nil {
		conditions = []model.Condition{}
	}
	return conditions, nil
}

// AddCondition は体調レコードを作成して返す。IDはサーバー側で採番する。
func (s *Service) AddCondition(ctx context.Context, userID, name, description string) (*model.Condition, error) {
	condition := &model.Condition{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateCondition(ctx, condition); err != nil {
		return nil, fmt.Errorf("体調レコードの作成に失敗しました: %w", err)
	}
	return condition, nil
}

// DeleteCondition は体調レコードを削除する。
// 存在しないIDや他ユーザーのレコードはNotFoundになる。
func (s *Service) DeleteCondition(ctx context.Context, userID, conditionID string) error {
	found, err := s.repo.DeleteCondition(ctx, userID, conditionID)
	if err != nil {
		return fmt.Errorf("体調レコードの削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewConditionNotFoundError(conditionID)
	}
	return nil
}

// ListMedications はユーザーの服薬レコード一覧を返す。
func (s *Service) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	medications, err := s.repo.ListMedications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("服薬レコードの取得に失敗しました: %w", err)
	}
	if medications == nil {
		medications = []model.Medication{}
	}
	return medications, nil
}

// AddMedication は服薬レコードを作成して返す。activeはtrueで初期化される。
func (s *Service) AddMedication(ctx context.Context, userID, name, dosage string) (*model.Medication, error) {
	medication := &model.Medication{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Dosage:    dosage,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateMedication(ctx, medication); err != nil {
		return nil, fmt.Errorf("服薬レコードの作成に失敗しました: %w", err)
	}
	return medication, nil
}

// DeleteMedication は服薬レコードを削除する。
func (s *Service) DeleteMedication(ctx context.Context, userID, medicationID string) error {
	found, err := s.repo.DeleteMedication(ctx, userID, medicationID)
	if err != nil {
		return fmt.Errorf("服薬レコードの削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewMedicationNotFoundError(medicationID)
	}
	return nil
}

// ToggleMedication はactiveフラグを反転し、反転後の値を返す。
func (s *Service) ToggleMedication(ctx context.Context, userID, medicationID string) (bool, error) {
	active, found, err := s.repo.ToggleMedication(ctx, userID, medicationID)
	if err != nil {
		return false, fmt.Errorf("服薬レコードの更新に失敗しました: %w", err)
	}
	if !found {
		return false, model.NewMedicationNotFoundError(medicationID)
	}
	return active, nil
}
