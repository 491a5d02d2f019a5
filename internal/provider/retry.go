// Package provider は外部プロバイダーAPI呼び出しの共通ヘルパーを提供する。
package provider

import (
	"net/http"
	"time"
)

// retryDelay はリトライ前の待機時間。
const retryDelay = 500 * time.Millisecond

// Retryable はHTTPステータスコードがリトライ対象かを返す。
// 429と5xxのみリトライする。4xxは呼び出し側の問題なので即時失敗。
func Retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Do はリクエストを実行し、トランスポート障害またはリトライ対象の
// ステータスの場合に限り1回だけリトライする。無制限のリトライループは作らない。
// リクエストボディを持つ呼び出しに対応するため、リクエストはビルダー関数で毎回生成する。
func Do(client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err == nil && !Retryable(resp.StatusCode) {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	}

	time.Sleep(retryDelay)

	req, buildErr := build()
	if buildErr != nil {
		return nil, buildErr
	}
	return client.Do(req)
}
