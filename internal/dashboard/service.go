// Package dashboard は複数プロバイダーのデータを集約するダッシュボード層を提供する。
// 片方のプロバイダー障害が他方のデータ表示を妨げないよう、失敗はログに落として縮退する。
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/wellbeat/internal/metrics"
	"github.com/hitoshi/wellbeat/internal/model"
	"github.com/hitoshi/wellbeat/internal/repository"
)

// FitnessClient はフィットネスプロバイダーからの時系列取得インターフェース。
type FitnessClient interface {
	FetchMetrics(ctx context.Context, blob *model.TokenSet) ([]model.StepPoint, []model.HeartRatePoint, []model.SleepSegment, *model.TokenSet, error)
}

// MusicClient は音楽プロバイダーからの再生データ取得インターフェース。
type MusicClient interface {
	GetCurrentTrack(ctx context.Context, blob *model.TokenSet) (*model.Track, error)
	GetRecentTracks(ctx context.Context, blob *model.TokenSet, limit int) ([]model.Track, error)
}

// Payload はダッシュボードのレスポンスペイロード。
// 接続済みでもデータが空の場合があるため、connectedフラグとデータは独立している。
type Payload struct {
	StepData         []model.StepPoint      `json:"step_data"`
	HeartRateData    []model.HeartRatePoint `json:"heart_rate_data"`
	SleepData        []model.SleepSegment   `json:"sleep_data"`
	CurrentTrack     *model.Track           `json:"current_track,omitempty"`
	RecentTracks     []model.Track          `json:"recent_tracks"`
	GoogleConnected  bool                   `json:"google_connected"`
	SpotifyConnected bool                   `json:"spotify_connected"`
	FitnessSyncedAt  *time.Time             `json:"fitness_synced_at,omitempty"`
	MusicSyncedAt    *time.Time             `json:"music_synced_at,omitempty"`
}

// ServiceConfig はダッシュボードサービスの設定。
type ServiceConfig struct {
	// RecentTracksLimit は再生履歴の取得件数。
	RecentTracksLimit int
}

// Service はダッシュボード集約のビジネスロジックを提供する。
type Service struct {
	sessionRepo  repository.SessionRepository
	snapshotRepo repository.SnapshotRepository
	fitness      FitnessClient
	music        MusicClient
	collector    metrics.MetricsCollector
	config       ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	sessionRepo repository.SessionRepository,
	snapshotRepo repository.SnapshotRepository,
	fitness FitnessClient,
	music MusicClient,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.RecentTracksLimit <= 0 {
		config.RecentTracksLimit = 5
	}
	return &Service{
		sessionRepo:  sessionRepo,
		snapshotRepo: snapshotRepo,
		fitness:      fitness,
		music:        music,
		collector:    collector,
		config:       config,
	}
}

func emptyPayload() *Payload {
	return &Payload{
		StepData:      []model.StepPoint{},
		HeartRateData: []model.HeartRatePoint{},
		SleepData:     []model.SleepSegment{},
		RecentTracks:  []model.Track{},
	}
}

// failureReason はメトリクスのreasonラベル用にエラーコードを取り出す。
func failureReason(err error) string {
	apiErr := &model.APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL"
}

// GetLive はライブデータを取得してペイロードを組み立てる。
// プロバイダー単位で失敗を縮退し、成功したプロバイダーのデータは必ず返す。
// 成功したデータはスナップショットにも書き戻す。
func (s *Service) GetLive(ctx context.Context, userID string) (*Payload, error) {
	session, err := s.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}

	payload := emptyPayload()
	s.fillFitness(ctx, session, payload)
	s.fillMusic(ctx, session, payload)
	return payload, nil
}

// fillFitness はGoogle Fitのライブデータをペイロードに詰める。
// トークンがリフレッシュされた場合はセッションに書き戻す。
func (s *Service) fillFitness(ctx context.Context, session *model.Session, payload *Payload) {
	if session.GoogleCredentials == nil {
		return
	}

	start := time.Now()
	steps, heartRate, sleep, refreshed, err := s.fitness.FetchMetrics(ctx, session.GoogleCredentials)
	s.collector.RecordProviderLatency(string(model.ProviderGoogle), time.Since(start))
	if err != nil {
		slog.Warn("fitness fetch failed, degrading",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		s.collector.RecordProviderFetchFailure(string(model.ProviderGoogle), failureReason(err))
		return
	}
	s.collector.RecordProviderFetchSuccess(string(model.ProviderGoogle))

	if refreshed != session.GoogleCredentials {
		s.collector.RecordTokenRefresh(string(model.ProviderGoogle))
		if _, err := s.sessionRepo.UpdateCredentials(ctx, session.UserID, model.ProviderGoogle, refreshed); err != nil {
			slog.Error("failed to persist refreshed credentials",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.snapshotRepo.UpsertFitness(ctx, session.UserID, steps, heartRate, sleep); err != nil {
		slog.Error("failed to persist fitness snapshot",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
	}

	now := time.Now()
	payload.StepData = steps
	payload.HeartRateData = heartRate
	payload.SleepData = sleep
	payload.GoogleConnected = true
	payload.FitnessSyncedAt = &now
}

// fillMusic はSpotifyのライブデータをペイロードに詰める。
func (s *Service) fillMusic(ctx context.Context, session *model.Session, payload *Payload) {
	if session.SpotifyCredentials == nil {
		return
	}

	start := time.Now()
	current, err := s.music.GetCurrentTrack(ctx, session.SpotifyCredentials)
	if err != nil {
		s.collector.RecordProviderLatency(string(model.ProviderSpotify), time.Since(start))
		slog.Warn("music fetch failed, degrading",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		s.collector.RecordProviderFetchFailure(string(model.ProviderSpotify), failureReason(err))
		return
	}

	recent, err := s.music.GetRecentTracks(ctx, session.SpotifyCredentials, s.config.RecentTracksLimit)
	s.collector.RecordProviderLatency(string(model.ProviderSpotify), time.Since(start))
	if err != nil {
		slog.Warn("music fetch failed, degrading",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		s.collector.RecordProviderFetchFailure(string(model.ProviderSpotify), failureReason(err))
		return
	}
	s.collector.RecordProviderFetchSuccess(string(model.ProviderSpotify))

	if err := s.snapshotRepo.UpsertMusic(ctx, session.UserID, current, recent); err != nil {
		slog.Error("failed to persist music snapshot",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
	}

	now := time.Now()
	payload.CurrentTrack = current
	payload.RecentTracks = recent
	payload.SpotifyConnected = true
	payload.MusicSyncedAt = &now
}

// GetCached はスナップショットのみからペイロードを組み立てる。外部呼び出しは行わない。
// スナップショットが存在しない場合は空のペイロードを返す。
func (s *Service) GetCached(ctx context.Context, userID string) (*Payload, error) {
	session, err := s.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}

	payload := emptyPayload()
	payload.GoogleConnected = session.GoogleCredentials != nil
	payload.SpotifyConnected = session.SpotifyCredentials != nil

	snapshot, err := s.snapshotRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return payload, nil
	}

	if snapshot.Steps != nil {
		payload.StepData = snapshot.Steps
	}
	if snapshot.HeartRate != nil {
		payload.HeartRateData = snapshot.HeartRate
	}
	if snapshot.Sleep != nil {
		payload.SleepData = snapshot.Sleep
	}
	payload.CurrentTrack = snapshot.CurrentTrack
	if snapshot.RecentTracks != nil {
		payload.RecentTracks = snapshot.RecentTracks
	}
	payload.FitnessSyncedAt = snapshot.FitnessSyncedAt
	payload.MusicSyncedAt = snapshot.MusicSyncedAt
	return payload, nil
}

// CurrentTrack は再生中のトラックを返す。何も再生されていない場合はnil。
// ダッシュボード集約と異なり、プロバイダーのエラーはそのまま呼び出し元に返す。
func (s *Service) CurrentTrack(ctx context.Context, userID string) (*model.Track, error) {
	blob, err := s.spotifyCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.music.GetCurrentTrack(ctx, blob)
}

// RecentTracks は最近再生したトラックを返す。
// limitが0以下の場合は設定のデフォルト値を使う。
func (s *Service) RecentTracks(ctx context.Context, userID string, limit int) ([]model.Track, error) {
	blob, err := s.spotifyCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.RecentTracksLimit
	}
	tracks, err := s.music.GetRecentTracks(ctx, blob, limit)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	return tracks, nil
}

// spotifyCredentials はセッションからSpotify資格情報を取り出す。
func (s *Service) spotifyCredentials(ctx context.Context, userID string) (*model.TokenSet, error) {
	session, err := s.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}
	if session.SpotifyCredentials == nil {
		return nil, model.NewSpotifyNotConnectedError()
	}
	return session.SpotifyCredentials, nil
}

// SyncNow は両プロバイダーの取得とスナップショット保存を強制実行する。
// プロバイダー単位の失敗はログとメトリクスに記録し、呼び出し元には返さない。
func (s *Service) SyncNow(ctx context.Context, userID string) error {
	s.collector.RecordDashboardSync()
	_, err := s.GetLive(ctx, userID)
	return err
}
