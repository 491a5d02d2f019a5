package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/wellbeat/internal/model"
)

// PostgresTrackingRepo はPostgreSQLを使用したセルフトラッキングリポジトリ。
type PostgresTrackingRepo struct {
	db *sql.DB
}

// NewPostgresTrackingRepo はPostgresTrackingRepoを生成する。
func NewPostgresTrackingRepo(db *sql.DB) *PostgresTrackingRepo {
	return &PostgresTrackingRepo{db: db}
}

// ListConditions はユーザーの体調レコード一覧を作成日時昇順で返す。
func (r *PostgresTrackingRepo) ListConditions(ctx context.Context, userID string) ([]model.Condition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, created_at
		 FROM conditions
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conditions: %w", err)
	}
	defer rows.Close()

	conditions := []model.Condition{}
	for rows.Next() {
		var c model.Condition
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan condition: %w", err)
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conditions: %w", err)
	}
	return conditions, nil
}

// CreateCondition は体調レコードを作成する。
func (r *PostgresTrackingRepo) CreateCondition(ctx context.Context, c *model.Condition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conditions (id, user_id, name, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Name, c.Description, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create condition: %w", err)
	}
	return nil
}

// DeleteCondition は体調レコードを削除する。削除対象が存在しない場合はfalseを返す。
func (r *PostgresTrackingRepo) DeleteCondition(ctx context.Context, userID, conditionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM conditions WHERE id = $1 AND user_id = $2`,
		conditionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete condition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListMedications はユーザーの服薬レコード一覧を作成日時昇順で返す。
func (r *PostgresTrackingRepo) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, dosage, active, created_at
		 FROM medications
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	medications := []model.Medication{}
	for rows.Next() {
		var m model.Medication
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		medications = append(medications, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medications: %w", err)
	}
	return medications, nil
}

// CreateMedication は服薬レコードを作成する。
func (r *PostgresTrackingRepo) CreateMedication(ctx context.Context, m *model.Medication) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO medications (id, user_id, name, dosage, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.Name, m.Dosage, m.Active, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

// DeleteMedication は服薬レコードを削除する。削除対象が存在しない場合はfalseを返す。
func (r *PostgresTrackingRepo) DeleteMedication(ctx context.Context, userID, medicationID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM medications WHERE id = $1 AND user_id = $2`,
		medicationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete medication: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ToggleMedication はactiveフラグを反転し、反転後の値を返す。
// UPDATE ... RETURNINGで反転と取得を原子的に行う。
func (r *PostgresTrackingRepo) ToggleMedication(ctx context.Context, userID, medicationID string) (bool, bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE medications SET active = NOT active
		 WHERE id = $1 AND user_id = $2
		 RETURNING active`,
		medicationID, userID,
	).Scan(&active)

	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to toggle medication: %w", err)
	}
	return active, true, nil
}

// compile-time interface check
var _ TrackingRepository = (*PostgresTrackingRepo)(nil)
