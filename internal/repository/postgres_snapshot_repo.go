package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/wellbeat/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
// 時系列データとトラックリストはJSONBカラムに格納する。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// UpsertFitness はフィットネス系列をまとめて置き換える。
func (r *PostgresSnapshotRepo) UpsertFitness(ctx context.Context, userID string, steps []model.StepPoint, heartRate []model.HeartRatePoint, sleep []model.SleepSegment) error {
	stepsJSON, err := marshalSeries(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	heartJSON, err := marshalSeries(heartRate)
	if err != nil {
		return fmt.Errorf("failed to marshal heart rate: %w", err)
	}
	sleepJSON, err := marshalSeries(sleep)
	if err != nil {
		return fmt.Errorf("failed to marshal sleep: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dashboard_snapshots (user_id, steps, heart_rate, sleep, fitness_synced_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET steps = EXCLUDED.steps,
		     heart_rate = EXCLUDED.heart_rate,
		     sleep = EXCLUDED.sleep,
		     fitness_synced_at = now()`,
		userID, stepsJSON, heartJSON, sleepJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fitness snapshot: %w", err)
	}
	return nil
}

// UpsertMusic は再生中トラックと再生履歴を置き換える。
// currentがnilの場合（再生中なし）はNULLで上書きする。
func (r *PostgresSnapshotRepo) UpsertMusic(ctx context.Context, userID string, current *model.Track, recent []model.Track) error {
	var currentJSON []byte
	if current != nil {
		var err error
		currentJSON, err = json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to marshal current track: %w", err)
		}
	}
	recentJSON, err := marshalSeries(recent)
	if err != nil {
		return fmt.Errorf("failed to marshal recent tracks: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dashboard_snapshots (user_id, current_track, recent_tracks, music_synced_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET current_track = EXCLUDED.current_track,
		     recent_tracks = EXCLUDED.recent_tracks,
		     music_synced_at = now()`,
		userID, currentJSON, recentJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert music snapshot: %w", err)
	}
	return nil
}

// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) FindByUserID(ctx context.Context, userID string) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	var stepsJSON, heartJSON, sleepJSON, currentJSON, recentJSON []byte
	var fitnessSyncedAt, musicSyncedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, steps, heart_rate, sleep, current_track, recent_tracks,
		        fitness_synced_at, music_synced_at
		 FROM dashboard_snapshots
		 WHERE user_id = $1`,
		userID,
	).Scan(&snap.UserID, &stepsJSON, &heartJSON, &sleepJSON, &currentJSON, &recentJSON,
		&fitnessSyncedAt, &musicSyncedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &snap.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	if err := json.Unmarshal(heartJSON, &snap.HeartRate); err != nil {
		return nil, fmt.Errorf("failed to unmarshal heart rate: %w", err)
	}
	if err := json.Unmarshal(sleepJSON, &snap.Sleep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sleep: %w", err)
	}
	if err := json.Unmarshal(recentJSON, &snap.RecentTracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent tracks: %w", err)
	}
	if len(currentJSON) > 0 {
		snap.CurrentTrack = &model.Track{}
		if err := json.Unmarshal(currentJSON, snap.CurrentTrack); err != nil {
			return nil, fmt.Errorf("failed to unmarshal current track: %w", err)
		}
	}
	if fitnessSyncedAt.Valid {
		snap.FitnessSyncedAt = &fitnessSyncedAt.Time
	}
	if musicSyncedAt.Valid {
		snap.MusicSyncedAt = &musicSyncedAt.Time
	}

	return snap, nil
}

// marshalSeries はスライスをJSONBカラム用に変換する。
// nilスライスは空配列として格納する（NULLを作らない）。
func marshalSeries[T any](series []T) ([]byte, error) {
	if series == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(series)
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
