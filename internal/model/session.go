// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は外部データプロバイダーの種別を表す。
type Provider string

const (
	// ProviderGoogle はGoogle Fit（フィットネスデータ）を示す。
	ProviderGoogle Provider = "google"
	// ProviderSpotify はSpotify（音楽再生データ）を示す。
	ProviderSpotify Provider = "spotify"
)

// Platform は認可フローを開始したクライアントの種別を表す。
// リダイレクトURIの選択に使用する。
type Platform string

const (
	// PlatformWeb はブラウザクライアントを示す。
	PlatformWeb Platform = "web"
	// PlatformMobile はモバイルアプリ（カスタムスキームリダイレクト）を示す。
	PlatformMobile Platform = "mobile"
)

// Session はユーザーのセッションレコードを表す。
// 最初の認可成功時に作成され、プロバイダーの資格情報が
// 更新・追加されるたびに書き換えられる。明示的なログアウトで削除される。
// UserIDはセッションの生存期間中、一意かつ不変。
type Session struct {
	UserID             string
	GoogleCredentials  *TokenSet
	SpotifyCredentials *TokenSet
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TokenSet はプロバイダーごとのOAuth資格情報ブロブを表す。
// セッションが排他的に所有し、セッション間で共有されることはない。
// Expiryが過去でRefreshTokenがある場合は使用前にリフレッシュが必要。
// リフレッシュに失敗したブロブは無効として扱い、プロバイダーは未接続と報告する。
type TokenSet struct {
	AccessToken   string     `json:"access_token"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	TokenEndpoint string     `json:"token_endpoint"`
	ClientID      string     `json:"client_id"`
	ClientSecret  string     `json:"client_secret"`
	Scopes        []string   `json:"scopes"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

// Expired はアクセストークンの有効期限が過ぎているかを返す。
// Expiry未設定のトークンは期限切れとして扱わない。
func (t *TokenSet) Expired(now time.Time) bool {
	return t.Expiry != nil && t.Expiry.Before(now)
}

// StateEntry はOAuth認可リクエストとコールバックを対応付ける
// アンチフォージェリstateトークンのサーバー側レコード。
// 単回使用であり、参照された時点で（成否にかかわらず）無効化される。
type StateEntry struct {
	Token     string
	Provider  Provider
	Platform  Platform
	ExpiresAt time.Time
}
