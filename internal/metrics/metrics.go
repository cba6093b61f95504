// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// フェッチャーやセッションストアから利用する。
type Recorder interface {
	RecordFetchSuccess(view string)
	RecordFetchFailure(view string)
	RecordFetchLatency(view string, duration time.Duration)
	RecordBackendStatus(statusCode int)
	RecordLoginSuccess()
	RecordLoginFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess *prometheus.CounterVec
	fetchFail    *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	httpStatus   *prometheus.CounterVec
	loginSuccess prometheus.Counter
	loginFail    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lembair_fetch_success_total",
			Help: "ビュー別のリソースフェッチ成功の合計数",
		}, []string{"view"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lembair_fetch_error_total",
			Help: "ビュー別のリソースフェッチ失敗の合計数",
		}, []string{"view"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lembair_fetch_latency_seconds",
			Help:    "リソースフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lembair_backend_http_status_total",
			Help: "バックエンドのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lembair_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lembair_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.httpStatus,
		c.loginSuccess,
		c.loginFail,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess(view string) {
	c.fetchSuccess.WithLabelValues(view).Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure(view string) {
	c.fetchFail.WithLabelValues(view).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(view string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(view).Observe(duration.Seconds())
}

// RecordBackendStatus はバックエンドのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
