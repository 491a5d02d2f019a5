// Package auth はOAuth認可フローのオーケストレーションとセッション管理を提供する。
// stateトークンの発行・単回使用の消費、認可コード交換、資格情報の保存を担う。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/wellbeat/internal/model"
	"github.com/hitoshi/wellbeat/internal/repository"
)

// ProviderClient はOAuthプロバイダーごとの認可URL生成とコード交換のインターフェース。
// googlefit.Client と spotify.Client が実装する。
type ProviderClient interface {
	// AuthCodeURL はstateを埋め込んだ認可URLを生成する。ネットワーク呼び出しは行わない。
	AuthCodeURL(state string, platform model.Platform) string
	// ExchangeCode は認可コードを資格情報ブロブに交換する。
	ExchangeCode(ctx context.Context, code string, platform model.Platform) (*model.TokenSet, error)
}

// ServiceConfig は認可サービスの設定。
type ServiceConfig struct {
	// StateTTL はstateトークンの有効期間。発行からこの時間を過ぎたstateは拒否される。
	StateTTL time.Duration
}

// Service はOAuth認可フローのビジネスロジックを提供する。
type Service struct {
	google      ProviderClient
	spotify     ProviderClient
	sessionRepo repository.SessionRepository
	stateRepo   repository.StateRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	google ProviderClient,
	spotify ProviderClient,
	sessionRepo repository.SessionRepository,
	stateRepo repository.StateRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		google:      google,
		spotify:     spotify,
		sessionRepo: sessionRepo,
		stateRepo:   stateRepo,
		config:      config,
	}
}

// client はプロバイダー名に対応するクライアントを返す。
func (s *Service) client(provider model.Provider) (ProviderClient, error) {
	switch provider {
	case model.ProviderGoogle:
		return s.google, nil
	case model.ProviderSpotify:
		return s.spotify, nil
	default:
		return nil, model.NewUnsupportedProviderError(string(provider))
	}
}

// BeginAuthorization は認可フローを開始し、プロバイダーの認可URLを返す。
// 呼び出しごとに新しいstateトークンを発行して永続化する。
// platformが空の場合はwebとして扱う。
func (s *Service) BeginAuthorization(ctx context.Context, provider model.Provider, platform model.Platform) (string, error) {
	client, err := s.client(provider)
	if err != nil {
		return "", err
	}
	if platform != model.PlatformMobile {
		platform = model.PlatformWeb
	}

	state := uuid.New().String()
	entry := &model.StateEntry{
		Token:     state,
		Provider:  provider,
		Platform:  platform,
		ExpiresAt: time.Now().Add(s.config.StateTTL),
	}
	if err := s.stateRepo.Create(ctx, entry); err != nil {
		return "", fmt.Errorf("stateトークンの保存に失敗しました: %w", err)
	}

	slog.Info("authorization started",
		slog.String("provider", string(provider)),
		slog.String("platform", string(platform)),
	)

	return client.AuthCodeURL(state, platform), nil
}

// CompleteAuthorization はコールバックを処理し、セッションを作成する。
// stateは成否にかかわらず消費され、再利用はInvalidStateになる。
// コード交換に失敗した場合、セッションは一切作成されない。
func (s *Service) CompleteAuthorization(ctx context.Context, code, state string) (*model.Session, model.Platform, error) {
	entry, err := s.stateRepo.Consume(ctx, state)
	if err != nil {
		return nil, "", fmt.Errorf("stateトークンの消費に失敗しました: %w", err)
	}
	if entry == nil || entry.ExpiresAt.Before(time.Now()) {
		return nil, "", model.NewInvalidStateError()
	}

	client, err := s.client(entry.Provider)
	if err != nil {
		return nil, "", err
	}

	blob, err := client.ExchangeCode(ctx, code, entry.Platform)
	if err != nil {
		slog.Warn("token exchange failed",
			slog.String("provider", string(entry.Provider)),
			slog.String("error", err.Error()),
		)
		return nil, "", err
	}

	now := time.Now()
	session := &model.Session{
		UserID:    uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch entry.Provider {
	case model.ProviderGoogle:
		session.GoogleCredentials = blob
	case model.ProviderSpotify:
		session.SpotifyCredentials = blob
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("authorization completed",
		slog.String("user_id", session.UserID),
		slog.String("provider", string(entry.Provider)),
		slog.String("platform", string(entry.Platform)),
	)

	return session, entry.Platform, nil
}

// LinkSpotify は既存セッションにSpotify資格情報を紐付ける。
// モバイルアプリがコールバックを自前で受け、コードとstateを後から渡すフロー用。
func (s *Service) LinkSpotify(ctx context.Context, userID, code, state string) (*model.TokenSet, error) {
	entry, err := s.stateRepo.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("stateトークンの消費に失敗しました: %w", err)
	}
	if entry == nil || entry.Provider != model.ProviderSpotify || entry.ExpiresAt.Before(time.Now()) {
		return nil, model.NewInvalidStateError()
	}

	blob, err := s.spotify.ExchangeCode(ctx, code, entry.Platform)
	if err != nil {
		return nil, err
	}

	found, err := s.sessionRepo.UpdateCredentials(ctx, userID, model.ProviderSpotify, blob)
	if err != nil {
		return nil, fmt.Errorf("資格情報の保存に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewSessionNotFoundError()
	}

	slog.Info("spotify linked",
		slog.String("user_id", userID),
	)

	return blob, nil
}

// SpotifyAuthorizeURL はモバイル主導フロー向けに認可URLとstateを生成して返す。
// stateは /auth/authorize と同じテーブルに永続化される。
func (s *Service) SpotifyAuthorizeURL(ctx context.Context, platform model.Platform) (authURL, state string, err error) {
	if platform != model.PlatformMobile {
		platform = model.PlatformWeb
	}
	state = uuid.New().String()
	entry := &model.StateEntry{
		Token:     state,
		Provider:  model.ProviderSpotify,
		Platform:  platform,
		ExpiresAt: time.Now().Add(s.config.StateTTL),
	}
	if err := s.stateRepo.Create(ctx, entry); err != nil {
		return "", "", fmt.Errorf("stateトークンの保存に失敗しました: %w", err)
	}
	return s.spotify.AuthCodeURL(state, platform), state, nil
}

// Logout はセッションを削除する。スナップショットはCASCADE削除される。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	slog.Info("session deleted",
		slog.String("user_id", userID),
	)
	return nil
}
