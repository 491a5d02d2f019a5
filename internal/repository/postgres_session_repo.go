package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/wellbeat/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 資格情報ブロブはJSONBカラムに格納する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	google, err := marshalCredentials(session.GoogleCredentials)
	if err != nil {
		return fmt.Errorf("failed to marshal google credentials: %w", err)
	}
	spotify, err := marshalCredentials(session.SpotifyCredentials)
	if err != nil {
		return fmt.Errorf("failed to marshal spotify credentials: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, google_credentials, spotify_credentials, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.UserID, google, spotify, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByUserID は指定ユーザーのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByUserID(ctx context.Context, userID string) (*model.Session, error) {
	session := &model.Session{}
	var google, spotify []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, google_credentials, spotify_credentials, created_at, updated_at
		 FROM sessions
		 WHERE user_id = $1`,
		userID,
	).Scan(&session.UserID, &google, &spotify, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if session.GoogleCredentials, err = unmarshalCredentials(google); err != nil {
		return nil, fmt.Errorf("failed to unmarshal google credentials: %w", err)
	}
	if session.SpotifyCredentials, err = unmarshalCredentials(spotify); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spotify credentials: %w", err)
	}

	return session, nil
}

// UpdateCredentials は指定プロバイダーの資格情報ブロブを書き換える。
func (r *PostgresSessionRepo) UpdateCredentials(ctx context.Context, userID string, provider model.Provider, creds *model.TokenSet) (bool, error) {
	data, err := marshalCredentials(creds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	var column string
	switch provider {
	case model.ProviderGoogle:
		column = "google_credentials"
	case model.ProviderSpotify:
		column = "spotify_credentials"
	default:
		return false, fmt.Errorf("unknown provider: %s", provider)
	}

	// カラム名はProvider定数からのみ決まるためインジェクションの余地はない
	query := fmt.Sprintf(
		`UPDATE sessions SET %s = $1, updated_at = now() WHERE user_id = $2`, column)

	result, err := r.db.ExecContext(ctx, query, data, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update credentials: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteByUserID は指定ユーザーのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// marshalCredentials はTokenSetをJSONBカラム用のバイト列に変換する。
// nilはSQL NULLとして格納する。
func marshalCredentials(creds *model.TokenSet) ([]byte, error) {
	if creds == nil {
		return nil, nil
	}
	return json.Marshal(creds)
}

// unmarshalCredentials はJSONBカラムのバイト列をTokenSetに戻す。
func unmarshalCredentials(data []byte) (*model.TokenSet, error) {
	if len(data) == 0 {
		return nil, nil
	}
	creds := &model.TokenSet{}
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
