// Package spotify はSpotify Web APIのクライアントを提供する。
// 認可コード交換と再生中・最近再生トラックの取得を含む。
// Spotifyの資格情報はリフレッシュせず、期限切れの場合は再認可を促す。
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/wellbeat/internal/model"
	"github.com/hitoshi/wellbeat/internal/provider"
)

const (
	defaultAuthURL    = "https://accounts.spotify.com/authorize"
	defaultTokenURL   = "https://accounts.spotify.com/api/token"
	defaultAPIBaseURL = "https://api.spotify.com/v1"

	// scope は再生状態と再生履歴の読み取りに必要なスコープ。
	scope = "user-read-playback-state user-read-recently-played"
)

// AppCredentials はOAuthクライアントアプリの資格情報とリダイレクトURI。
type AppCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Config はSpotifyクライアントの設定。
type Config struct {
	Web    AppCredentials
	Mobile AppCredentials

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// Client はSpotify Web APIのクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
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
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) app(platform model.Platform) AppCredentials {
	if platform == model.PlatformMobile {
		return c.config.Mobile
	}
	return c.config.Web
}

// AuthCodeURL はSpotifyの認可URLを生成する。ネットワーク呼び出しは行わない。
func (c *Client) AuthCodeURL(state string, platform model.Platform) string {
	app := c.app(platform)
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {app.ClientID},
		"redirect_uri":  {app.RedirectURL},
		"scope":         {scope},
		"state":         {state},
	}
	return c.config.AuthURL + "?" + params.Encode()
}

// tokenResponse はSpotifyトークンエンドポイントの応答。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExchangeCode は認可コードをトークンセットに交換する。
// クライアント認証はBasic認証ヘッダーで行う（Spotifyの要求仕様）。
func (c *Client) ExchangeCode(ctx context.Context, code string, platform model.Platform) (*model.TokenSet, error) {
	app := c.app(platform)
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {app.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(app.ClientID + ":" + app.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewTokenExchangeError(model.ProviderSpotify, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewTokenExchangeError(model.ProviderSpotify, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewTokenExchangeError(model.ProviderSpotify,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, model.NewTokenExchangeError(model.ProviderSpotify, "failed to parse token response")
	}
	if tok.AccessToken == "" {
		return nil, model.NewTokenExchangeError(model.ProviderSpotify, "token response missing access_token")
	}

	blob := &model.TokenSet{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		TokenEndpoint: c.config.TokenURL,
		ClientID:      app.ClientID,
		ClientSecret:  app.ClientSecret,
		Scopes:        strings.Fields(scope),
	}
	if tok.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
		blob.Expiry = &expiry
	}
	return blob, nil
}

// --- Spotify Web APIのワイヤ型 ---

type trackObject struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

type currentlyPlayingResponse struct {
	IsPlaying bool         `json:"is_playing"`
	Item      *trackObject `json:"item"`
}

type recentlyPlayedResponse struct {
	Items []struct {
		Track    trackObject `json:"track"`
		PlayedAt string      `json:"played_at"`
	} `json:"items"`
}

// GetCurrentTrack は再生中のトラックを取得する。
// 何も再生されていない場合（204）はnilを返す。これはエラーではない。
// 資格情報が期限切れの場合は呼び出さずにCredentialExpiredを返し、再認可を促す。
func (c *Client) GetCurrentTrack(ctx context.Context, blob *model.TokenSet) (*model.Track, error) {
	if blob.Expired(time.Now()) {
		return nil, model.NewCredentialExpiredError(model.ProviderSpotify)
	}

	resp, err := c.get(ctx, blob.AccessToken, "/me/player/currently-playing")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, model.NewCredentialExpiredError(model.ProviderSpotify)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProviderUnavailableError(model.ProviderSpotify,
			fmt.Sprintf("currently-playing returned status %d", resp.StatusCode))
	}

	var result currentlyPlayingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderSpotify, "failed to parse currently-playing response")
	}
	if !result.IsPlaying || result.Item == nil {
		return nil, nil
	}

	track := toTrack(*result.Item)
	return &track, nil
}

// GetRecentTracks は最近再生したトラックを新しい順に取得する。
func (c *Client) GetRecentTracks(ctx context.Context, blob *model.TokenSet, limit int) ([]model.Track, error) {
	if blob.Expired(time.Now()) {
		return nil, model.NewCredentialExpiredError(model.ProviderSpotify)
	}

	resp, err := c.get(ctx, blob.AccessToken, "/me/player/recently-played?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, model.NewCredentialExpiredError(model.ProviderSpotify)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProviderUnavailableError(model.ProviderSpotify,
			fmt.Sprintf("recently-played returned status %d", resp.StatusCode))
	}

	var result recentlyPlayedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderSpotify, "failed to parse recently-played response")
	}

	tracks := []model.Track{}
	for _, item := range result.Items {
		track := toTrack(item.Track)
		if playedAt, err := time.Parse(time.RFC3339, item.PlayedAt); err == nil {
			playedAt = playedAt.UTC()
			track.PlayedAt = &playedAt
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// get はAPIベースURL配下のGETを1回リトライ付きで実行する。
func (c *Client) get(ctx context.Context, accessToken, path string) (*http.Response, error) {
	endpoint := c.config.APIBaseURL + path
	resp, err := provider.Do(c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
	if err != nil {
		return nil, model.NewProviderUnavailableError(model.ProviderSpotify, err.Error())
	}
	return resp, nil
}

// toTrack はSpotifyのトラックオブジェクトを内部表現に変換する。
// アーティストは複数の場合カンマ区切りで結合する。
func toTrack(obj trackObject) model.Track {
	names := make([]string, 0, len(obj.Artists))
	for _, a := range obj.Artists {
		names = append(names, a.Name)
	}
	track := model.Track{
		Name:   obj.Name,
		Artist: strings.Join(names, ", "),
		Album:  obj.Album.Name,
	}
	if len(obj.Album.Images) > 0 {
		track.ImageURL = obj.Album.Images[0].URL
	}
	return track
}
