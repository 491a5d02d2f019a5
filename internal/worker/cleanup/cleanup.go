// Package cleanup はOAuth stateとスナップショットの自動削除ジョブを提供する。
// 期限切れのstateトークンと、保持期間（デフォルト30日）を超過した
// スナップショットを定期バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/wellbeat/internal/metrics"
	"github.com/hitoshi/wellbeat/internal/repository"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れstateと古いスナップショットの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	stateRepo     repository.StateRepository
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	RetentionDays int // スナップショットの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// スナップショットのデフォルト保持日数は30日。
func NewCleanupJob(db Executor, stateRepo repository.StateRepository, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		stateRepo:     stateRepo,
		collector:     collector,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れのstateトークンと保持期間を超過したスナップショットを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sweptCount, err := j.stateRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れstateの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れstateの削除に失敗: %w", err)
	}
	j.collector.RecordStatesSwept(sweptCount)

	interval := fmt.Sprintf("%d days", j.RetentionDays)
	query := `
		DELETE FROM dashboard_snapshots
		WHERE GREATEST(
			COALESCE(fitness_synced_at, to_timestamp(0)),
			COALESCE(music_synced_at, to_timestamp(0))
		) < now() - $1::interval
		AND (fitness_synced_at IS NOT NULL OR music_synced_at IS NOT NULL)`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("スナップショットクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("スナップショットクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("swept_states", sweptCount),
		slog.Int64("deleted_snapshots", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
