package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定名・ラベルのカウンタ値を取り出すヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if labels[l.GetName()] != l.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

// TestRecordProviderFetchSuccess_IncrementsPerProvider は成功カウンタがプロバイダー別に増加することを検証する。
func TestRecordProviderFetchSuccess_IncrementsPerProvider(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderFetchSuccess("google")
	c.RecordProviderFetchSuccess("google")
	c.RecordProviderFetchSuccess("spotify")

	if got := counterValue(t, reg, "wellbeat_provider_fetch_success_total", map[string]string{"provider": "google"}); got != 2 {
		t.Errorf("google fetch_success = %v, want 2", got)
	}
	if got := counterValue(t, reg, "wellbeat_provider_fetch_success_total", map[string]string{"provider": "spotify"}); got != 1 {
		t.Errorf("spotify fetch_success = %v, want 1", got)
	}
}

// TestRecordProviderFetchFailure_LabelsReason は失敗カウンタが理由ラベル付きで増加することを検証する。
func TestRecordProviderFetchFailure_LabelsReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderFetchFailure("google", "CREDENTIAL_EXPIRED")
	c.RecordProviderFetchFailure("google", "PROVIDER_UNAVAILABLE")
	c.RecordProviderFetchFailure("google", "PROVIDER_UNAVAILABLE")

	got := counterValue(t, reg, "wellbeat_provider_fetch_fail_total",
		map[string]string{"provider": "google", "reason": "PROVIDER_UNAVAILABLE"})
	if got != 2 {
		t.Errorf("fetch_fail{PROVIDER_UNAVAILABLE} = %v, want 2", got)
	}
}

// TestRecordProviderLatency_ObservesHistogram はレイテンシヒストグラムに値が記録されることを検証する。
func TestRecordProviderLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderLatency("google", 100*time.Millisecond)
	c.RecordProviderLatency("google", 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "wellbeat_provider_fetch_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("wellbeat_provider_fetch_latency_seconds metric not found")
	}
}

// TestRecordStatesSwept_AddsCount は掃除件数カウンタが加算されることを検証する。
func TestRecordStatesSwept_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStatesSwept(10)
	c.RecordStatesSwept(5)

	if got := counterValue(t, reg, "wellbeat_oauth_states_swept_total", nil); got != 15 {
		t.Errorf("states_swept = %v, want 15", got)
	}
}

// TestHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderFetchSuccess("google")
	c.RecordProviderFetchFailure("spotify", "PROVIDER_UNAVAILABLE")
	c.RecordTokenRefresh("google")
	c.RecordDashboardSync()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"wellbeat_provider_fetch_success_total",
		"wellbeat_provider_fetch_fail_total",
		"wellbeat_token_refresh_total",
		"wellbeat_dashboard_sync_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
