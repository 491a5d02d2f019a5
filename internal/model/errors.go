package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, tracking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	ErrCodeCredentialExpired   = "CREDENTIAL_EXPIRED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeConditionNotFound   = "CONDITION_NOT_FOUND"
	ErrCodeMedicationNotFound  = "MEDICATION_NOT_FOUND"
	ErrCodeSpotifyNotConnected = "SPOTIFY_NOT_CONNECTED"
)

// NewUnsupportedProviderError は未対応プロバイダーのエラーを生成する。
func NewUnsupportedProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedProvider,
		Message:  fmt.Sprintf("対応していないプロバイダーです: %s", provider),
		Category: "validation",
		Action:   "provider には google または spotify を指定してください。",
	}
}

// NewInvalidStateError は不正または期限切れのstateトークンのエラーを生成する。
// stateは単回使用のため、再利用された場合もこのエラーになる。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "OAuth stateトークンが不正か、有効期限が切れています。",
		Category: "auth",
		Action:   "認可フローを最初からやり直してください。",
	}
}

// NewTokenExchangeError は認可コードのトークン交換失敗エラーを生成する。
// プロバイダーのエラー詳細をメッセージに含める。
func NewTokenExchangeError(provider Provider, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchangeFailed,
		Message:  fmt.Sprintf("%s のトークン交換に失敗しました: %s", provider, detail),
		Category: "auth",
		Action:   "認可フローを最初からやり直してください。",
	}
}

// NewCredentialExpiredError は資格情報が期限切れでリフレッシュ不能な場合のエラーを生成する。
func NewCredentialExpiredError(provider Provider) *APIError {
	return &APIError{
		Code:     ErrCodeCredentialExpired,
		Message:  fmt.Sprintf("%s の資格情報の有効期限が切れています。", provider),
		Category: "auth",
		Action:   "プロバイダーを再連携してください。",
	}
}

// NewProviderUnavailableError はプロバイダーAPIの呼び出し失敗エラーを生成する。
// リトライ後もトランスポート障害または非2xxが続いた場合にのみ使用する。
func NewProviderUnavailableError(provider Provider, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  fmt.Sprintf("%s APIの呼び出しに失敗しました: %s", provider, detail),
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "セッションが見つかりません。",
		Category: "auth",
		Action:   "プロバイダー連携からやり直してください。",
	}
}

// NewConditionNotFoundError は体調レコード未検出エラーを生成する。
func NewConditionNotFoundError(conditionID string) *APIError {
	return &APIError{
		Code:     ErrCodeConditionNotFound,
		Message:  fmt.Sprintf("指定された体調レコードが見つかりません: %s", conditionID),
		Category: "tracking",
		Action:   "レコードIDを確認してください。",
	}
}

// NewMedicationNotFoundError は服薬レコード未検出エラーを生成する。
func NewMedicationNotFoundError(medicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeMedicationNotFound,
		Message:  fmt.Sprintf("指定された服薬レコードが見つかりません: %s", medicationID),
		Category: "tracking",
		Action:   "レコードIDを確認してください。",
	}
}

// NewSpotifyNotConnectedError はSpotify未連携のセッションでの操作エラーを生成する。
func NewSpotifyNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeSpotifyNotConnected,
		Message:  "Spotifyが連携されていません。",
		Category: "auth",
		Action:   "Spotifyの連携を行ってください。",
	}
}
