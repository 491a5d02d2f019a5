// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ダッシュボード集約層とワーカーから利用する。
type MetricsCollector interface {
	RecordProviderFetchSuccess(provider string)
	RecordProviderFetchFailure(provider string, reason string)
	RecordProviderLatency(provider string, duration time.Duration)
	RecordTokenRefresh(provider string)
	RecordDashboardSync()
	RecordStatesSwept(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess  *prometheus.CounterVec
	fetchFail     *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	tokenRefresh  *prometheus.CounterVec
	dashboardSync prometheus.Counter
	statesSwept   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellbeat_provider_fetch_success_total",
			Help: "プロバイダーデータ取得成功の合計数",
		}, []string{"provider"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellbeat_provider_fetch_fail_total",
			Help: "プロバイダーデータ取得失敗の合計数",
		}, []string{"provider", "reason"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wellbeat_provider_fetch_latency_seconds",
			Help:    "プロバイダーデータ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellbeat_token_refresh_total",
			Help: "アクセストークンリフレッシュの合計数",
		}, []string{"provider"}),
		dashboardSync: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellbeat_dashboard_sync_total",
			Help: "ダッシュボード強制同期の合計数",
		}),
		statesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellbeat_oauth_states_swept_total",
			Help: "掃除された期限切れstateトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.tokenRefresh,
		c.dashboardSync,
		c.statesSwept,
	)

	return c
}

// RecordProviderFetchSuccess はプロバイダー取得成功を記録する。
func (c *Collector) RecordProviderFetchSuccess(provider string) {
	c.fetchSuccess.WithLabelValues(provider).Inc()
}

// RecordProviderFetchFailure はプロバイダー取得失敗を理由付きで記録する。
func (c *Collector) RecordProviderFetchFailure(provider string, reason string) {
	c.fetchFail.WithLabelValues(provider, reason).Inc()
}

// RecordProviderLatency はプロバイダー取得のレイテンシを記録する。
func (c *Collector) RecordProviderLatency(provider string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの発生を記録する。
func (c *Collector) RecordTokenRefresh(provider string) {
	c.tokenRefresh.WithLabelValues(provider).Inc()
}

// RecordDashboardSync は強制同期の実行を記録する。
func (c *Collector) RecordDashboardSync() {
	c.dashboardSync.Inc()
}

// RecordStatesSwept は掃除された期限切れstateの件数を記録する。
func (c *Collector) RecordStatesSwept(count int64) {
	c.statesSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
