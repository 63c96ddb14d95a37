// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はAPI呼び出しとリレーのメトリクス記録インターフェース。
// リクエスト実行層やリレーから利用する。
type Recorder interface {
	RecordRequest(scope, outcome string, duration time.Duration)
	RecordRelayStatus(statusCode int)
	RecordBulkDeleteFailures(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests           *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	relayStatus        *prometheus.CounterVec
	bulkDeleteFailures prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskfront_api_requests_total",
			Help: "リモートAPI呼び出しの結果別の合計数",
		}, []string{"scope", "outcome"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskfront_api_request_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		relayStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskfront_relay_status_total",
			Help: "リレーが返したHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		bulkDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskfront_bulk_delete_failures_total",
			Help: "一括削除で失敗したTODOの合計数",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.relayStatus,
		c.bulkDeleteFailures,
	)

	return c
}

// RecordRequest はAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordRequest(scope, outcome string, duration time.Duration) {
	c.requests.WithLabelValues(scope, outcome).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRelayStatus はリレーのHTTPステータスコードを記録する。
func (c *Collector) RecordRelayStatus(statusCode int) {
	c.relayStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBulkDeleteFailures は一括削除の失敗件数を記録する。
func (c *Collector) RecordBulkDeleteFailures(count int) {
	c.bulkDeleteFailures.Add(float64(count))
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordRequest(string, string, time.Duration) {}
func (Nop) RecordRelayStatus(int)                       {}
func (Nop) RecordBulkDeleteFailures(int)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
