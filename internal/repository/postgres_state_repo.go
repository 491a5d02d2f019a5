package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/wellbeat/internal/model"
)

// PostgresStateRepo はPostgreSQLを使用したOAuth stateリポジトリ。
type PostgresStateRepo struct {
	db *sql.DB
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
func NewPostgresStateRepo(db *sql.DB) *PostgresStateRepo {
	return &PostgresStateRepo{db: db}
}

// Create はstateエントリを保存する。
func (r *PostgresStateRepo) Create(ctx context.Context, entry *model.StateEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (token, provider, platform, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		entry.Token, string(entry.Provider), string(entry.Platform), entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// Consume はstateエントリを取得し、同時に削除する。
// DELETE ... RETURNINGにより取得と無効化が原子的に行われるため、
// 同一stateの並行コールバックでも二重消費は起きない。
// 期限切れ判定は呼び出し元が行う（参照自体で常に無効化するため）。
func (r *PostgresStateRepo) Consume(ctx context.Context, token string) (*model.StateEntry, error) {
	entry := &model.StateEntry{Token: token}
	var provider, platform string

	err := r.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE token = $1
		 RETURNING provider, platform, expires_at`,
		token,
	).Scan(&provider, &platform, &entry.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	entry.Provider = model.Provider(provider)
	entry.Platform = model.Platform(platform)
	return entry, nil
}

// DeleteExpired は期限切れのstateエントリを削除し、削除件数を返す。
// ワーカーの定期掃除から呼ばれる。冪等。
func (r *PostgresStateRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ StateRepository = (*PostgresStateRepo)(nil)
