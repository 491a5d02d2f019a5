// Package googlefit はGoogle Fit REST APIのクライアントを提供する。
// 認可コード交換、リフレッシュトークングラント、時系列データの集約取得を含む。
package googlefit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/wellbeat/internal/model"
	"github.com/hitoshi/wellbeat/internal/provider"
)

const (
	defaultAuthURL    = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenURL   = "https://oauth2.googleapis.com/token"
	defaultAPIBaseURL = "https://www.googleapis.com/fitness/v1"

	dataTypeSteps     = "com.google.step_count.delta"
	dataTypeHeartRate = "com.google.heart_rate.bpm"

	// sleepActivityType はGoogle Fitセッションにおける睡眠のactivityType。
	sleepActivityType = 72

	// bucketDurationMillis は集約バケットの幅（1時間）。
	// 日次ではなく時間単位で統一する。
	bucketDurationMillis = 3600000

	// defaultWindowDays は取得対象のトレーリングウィンドウ（7日固定）。
	// 元実装は1日と7日が混在していたが、本実装では7日に統一する。
	defaultWindowDays = 7
)

// scopes はGoogle Fitの読み取りに必要なOAuthスコープ。
var scopes = []string{
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
}

// AppCredentials はOAuthクライアントアプリの資格情報とリダイレクトURI。
// Webとモバイルで別々のOAuthアプリを使い分けるため、プラットフォームごとに持つ。
type AppCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Config はGoogle Fitクライアントの設定。
type Config struct {
	Web    AppCredentials
	Mobile AppCredentials

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// WindowDays は時系列取得のトレーリングウィンドウ（日数）。
	WindowDays int
}

// Client はGoogle Fit APIのクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
// httpClientには呼び出しタイムアウトを設定したクライアントを渡すこと。
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if config.AuthURL == "" {
		config.AuthURL = defaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.WindowDays <= 0 {
		config.WindowDays = defaultWindowDays
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// app はプラットフォームに対応するOAuthアプリ資格情報を返す。
func (c *Client) app(platform model.Platform) AppCredentials {
	if platform == model.PlatformMobile {
		return c.config.Mobile
	}
	return c.config.Web
}

// oauthConfig はプラットフォームに対応するoauth2.Configを組み立てる。
func (c *Client) oauthConfig(platform model.Platform) *oauth2.Config {
	app := c.app(platform)
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		RedirectURL:  app.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.config.AuthURL,
			TokenURL: c.config.TokenURL,
		},
	}
}

// AuthCodeURL はGoogleの認可URLを生成する。ネットワーク呼び出しは行わない。
// リフレッシュトークンを得るためaccess_type=offlineを付与する。
func (c *Client) AuthCodeURL(state string, platform model.Platform) string {
	return c.oauthConfig(platform).AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode は認可コードをトークンセットに交換する。
// 交換に使用したクライアント資格情報とトークンエンドポイントをブロブに埋め込み、
// 以降のリフレッシュがブロブ単体で完結するようにする。
func (c *Client) ExchangeCode(ctx context.Context, code string, platform model.Platform) (*model.TokenSet, error) {
	conf := c.oauthConfig(platform)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, model.NewTokenExchangeError(model.ProviderGoogle, err.Error())
	}

	return c.tokenSetFrom(tok, conf), nil
}

// RefreshIfNeeded は期限切れのブロブをリフレッシュトークングラントで更新する。
// 有効なブロブはそのまま返すため冪等。期限切れかつリフレッシュトークンなし、
// またはリフレッシュ失敗の場合はCredentialExpiredエラーを返す
// （古いトークンで黙って続行しない）。
func (c *Client) RefreshIfNeeded(ctx context.Context, blob *model.TokenSet) (*model.TokenSet, error) {
	if !blob.Expired(time.Now()) {
		return blob, nil
	}
	if blob.RefreshToken == "" {
		return nil, model.NewCredentialExpiredError(model.ProviderGoogle)
	}

	conf := &oauth2.Config{
		ClientID:     blob.ClientID,
		ClientSecret: blob.ClientSecret,
		Scopes:       blob.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL: blob.TokenEndpoint,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	stale := &oauth2.Token{
		AccessToken:  blob.AccessToken,
		RefreshToken: blob.RefreshToken,
		Expiry:       *blob.Expiry,
	}

	tok, err := conf.TokenSource(ctx, stale).Token()
	if err != nil {
		c.logger.Warn("google fit token refresh failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewCredentialExpiredError(model.ProviderGoogle)
	}

	refreshed := c.tokenSetFrom(tok, conf)
	// リフレッシュ応答にrefresh_tokenが含まれない場合は既存の値を引き継ぐ
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = blob.RefreshToken
	}
	return refreshed, nil
}

// FetchMetrics はトレーリングウィンドウ分の歩数・心拍・睡眠を取得する。
// 必ず先にRefreshIfNeededを通し、更新後のブロブを合わせて返す。
// プロバイダーがバケットを返さない場合は空スライスを返す（エラーではない）。
// 各系列はタイムスタンプ昇順にソートして返す。
func (c *Client) FetchMetrics(ctx context.Context, blob *model.TokenSet) ([]model.StepPoint, []model.HeartRatePoint, []model.SleepSegment, *model.TokenSet, error) {
	refreshed, err := c.RefreshIfNeeded(ctx, blob)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -c.config.WindowDays)

	stepsResp, err := c.aggregate(ctx, refreshed.AccessToken, dataTypeSteps, start, end)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	steps := parseSteps(stepsResp)

	heartResp, err := c.aggregate(ctx, refreshed.AccessToken, dataTypeHeartRate, start, end)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	heartRate := parseHeartRate(heartResp)

	sleep, err := c.fetchSleepSessions(ctx, refreshed.AccessToken, start, end)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Timestamp.Before(steps[j].Timestamp) })
	sort.Slice(heartRate, func(i, j int) bool { return heartRate[i].Timestamp.Before(heartRate[j].Timestamp) })
	sort.Slice(sleep, func(i, j int) bool { return sleep[i].Timestamp.Before(sleep[j].Timestamp) })

	return steps, heartRate, sleep, refreshed, nil
}

// --- Google Fit APIのワイヤ型 ---

type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateResponse struct {
	Bucket []struct {
		Dataset []struct {
			Point []struct {
				EndTimeNanos string `json:"endTimeNanos"`
				Value        []struct {
					IntVal *int64   `json:"intVal,omitempty"`
					FpVal  *float64 `json:"fpVal,omitempty"`
				} `json:"value"`
			} `json:"point"`
		} `json:"dataset"`
	} `json:"bucket"`
}

type sessionsResponse struct {
	Session []struct {
		StartTimeMillis string `json:"startTimeMillis"`
		EndTimeMillis   string `json:"endTimeMillis"`
		ActivityType    int    `json:"activityType"`
		Name            string `json:"name"`
	} `json:"session"`
}

// aggregate は集約エンドポイントを呼び出す。トランスポート障害または
// リトライ後も非2xxの場合はProviderUnavailableエラーを返す。
func (c *Client) aggregate(ctx context.Context, accessToken, dataTypeName string, start, end time.Time) (*aggregateResponse, error) {
	reqBody := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataTypeName}},
		BucketByTime:    bucketByTime{DurationMillis: bucketDurationMillis},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregate request: %w", err)
	}

	endpoint := c.config.APIBaseURL + "/users/me/dataset:aggregate"
	resp, err := provider.Do(c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle,
			fmt.Sprintf("aggregate returned status %d: %s", resp.StatusCode, truncate(body)))
	}

	result := &aggregateResponse{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, "failed to parse aggregate response")
	}
	return result, nil
}

// fetchSleepSessions はセッション一覧エンドポイントから睡眠セッションを取得する。
// activityType=72（睡眠）のセッションのみを対象にする。
func (c *Client) fetchSleepSessions(ctx context.Context, accessToken string, start, end time.Time) ([]model.SleepSegment, error) {
	params := url.Values{
		"startTime": {start.UTC().Format(time.RFC3339)},
		"endTime":   {end.UTC().Format(time.RFC3339)},
	}
	endpoint := c.config.APIBaseURL + "/users/me/sessions?" + params.Encode()

	resp, err := provider.Do(c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
	if err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle,
			fmt.Sprintf("sessions returned status %d: %s", resp.StatusCode, truncate(body)))
	}

	var result sessionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderGoogle, "failed to parse sessions response")
	}

	sleep := []model.SleepSegment{}
	for _, s := range result.Session {
		if s.ActivityType != sleepActivityType {
			continue
		}
		startMillis, err := strconv.ParseInt(s.StartTimeMillis, 10, 64)
		if err != nil {
			continue
		}
		endMillis, err := strconv.ParseInt(s.EndTimeMillis, 10, 64)
		if err != nil {
			continue
		}
		name := s.Name
		if name == "" {
			name = "sleep"
		}
		sleep = append(sleep, model.SleepSegment{
			Timestamp:       time.UnixMilli(startMillis).UTC(),
			DurationMinutes: int((endMillis - startMillis) / 60000),
			Type:            name,
		})
	}
	return sleep, nil
}

// parseSteps は集約応答から歩数系列を取り出す。intVal以外のポイントは無視する。
func parseSteps(resp *aggregateResponse) []model.StepPoint {
	steps := []model.StepPoint{}
	for _, bucket := range resp.Bucket {
		for _, dataset := range bucket.Dataset {
			for _, point := range dataset.Point {
				ts, ok := parseNanos(point.EndTimeNanos)
				if !ok || len(point.Value) == 0 || point.Value[0].IntVal == nil {
					continue
				}
				steps = append(steps, model.StepPoint{
					Timestamp: ts,
					Steps:     int(*point.Value[0].IntVal),
				})
			}
		}
	}
	return steps
}

// parseHeartRate は集約応答から心拍系列を取り出す。fpVal以外のポイントは無視する。
func parseHeartRate(resp *aggregateResponse) []model.HeartRatePoint {
	heartRate := []model.HeartRatePoint{}
	for _, bucket := range resp.Bucket {
		for _, dataset := range bucket.Dataset {
			for _, point := range dataset.Point {
				ts, ok := parseNanos(point.EndTimeNanos)
				if !ok || len(point.Value) == 0 || point.Value[0].FpVal == nil {
					continue
				}
				heartRate = append(heartRate, model.HeartRatePoint{
					Timestamp: ts,
					BPM:       *point.Value[0].FpVal,
				})
			}
		}
	}
	return heartRate
}

// parseNanos はナノ秒文字列をtime.Timeに変換する。
func parseNanos(nanos string) (time.Time, bool) {
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// tokenSetFrom はoauth2.Tokenを資格情報ブロブに変換する。
func (c *Client) tokenSetFrom(tok *oauth2.Token, conf *oauth2.Config) *model.TokenSet {
	blob := &model.TokenSet{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		TokenEndpoint: conf.Endpoint.TokenURL,
		ClientID:      conf.ClientID,
		ClientSecret:  conf.ClientSecret,
		Scopes:        conf.Scopes,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		blob.Expiry = &expiry
	}
	return blob
}

// truncate はエラー詳細用にレスポンスボディを切り詰める。
func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
