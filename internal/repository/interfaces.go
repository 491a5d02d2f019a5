// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/wellbeat/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByUserID は指定ユーザーのセッションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Session, error)

	// UpdateCredentials は指定プロバイダーの資格情報ブロブを書き換える。
	// セッションが存在しない場合はエラーではなくfalseを返す。
	UpdateCredentials(ctx context.Context, userID string, provider model.Provider, creds *model.TokenSet) (bool, error)

	// DeleteByUserID は指定ユーザーのセッションを削除する。
	// 関連するスナップショットはCASCADE削除される。
	DeleteByUserID(ctx context.Context, userID string) error
}

// StateRepository はアンチフォージェリstateトークンの永続化インターフェース。
type StateRepository interface {
	// Create はstateエントリを保存する。
	Create(ctx context.Context, entry *model.StateEntry) error

	// Consume はstateエントリを取得し、同時に削除する（単回使用）。
	// 見つからない場合はnilを返す。期限切れ判定は呼び出し元が行う。
	Consume(ctx context.Context, token string) (*model.StateEntry, error)

	// DeleteExpired は期限切れのstateエントリを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SnapshotRepository はダッシュボードスナップショットの永続化インターフェース。
// 書き込みは常に全置換であり、差分マージは行わない。
type SnapshotRepository interface {
	// UpsertFitness はフィットネス系列をまとめて置き換える。
	UpsertFitness(ctx context.Context, userID string, steps []model.StepPoint, heartRate []model.HeartRatePoint, sleep []model.SleepSegment) error

	// UpsertMusic は再生中トラックと再生履歴を置き換える。
	UpsertMusic(ctx context.Context, userID string, current *model.Track, recent []model.Track) error

	// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Snapshot, error)
}

// TrackingRepository はセルフトラッキングレコードの永続化インターフェース。
type TrackingRepository interface {
	// ListConditions はユーザーの体調レコード一覧を作成日時昇順で返す。
	ListConditions(ctx context.Context, userID string) ([]model.Condition, error)

	// CreateCondition は体調レコードを作成する。
	CreateCondition(ctx context.Context, c *model.Condition) error

	// DeleteCondition は体調レコードを削除する。削除対象が存在しない場合はfalseを返す。
	DeleteCondition(ctx context.Context, userID, conditionID string) (bool, error)

	// ListMedications はユーザーの服薬レコード一覧を作成日時昇順で返す。
	ListMedications(ctx context.Context, userID string) ([]model.Medication, error)

	// CreateMedication は服薬レコードを作成する。
	CreateMedication(ctx context.Context, m *model.Medication) error

	// DeleteMedication は服薬レコードを削除する。削除対象が存在しない場合はfalseを返す。
	DeleteMedication(ctx context.Context, userID, medicationID string) (bool, error)

	// ToggleMedication はactiveフラグを反転し、反転後の値を返す。
	// 対象が存在しない場合はfalse, nilエラーではなく存在フラグで通知する。
	ToggleMedication(ctx context.Context, userID, medicationID string) (active bool, found bool, err error)
}
