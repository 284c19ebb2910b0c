// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 選択リスト同期器、推薦サービス、取り込みワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSelectionToggle(kind, domain, action, result string)
	RecordRecommendation(domain, outcome string)
	RecordIngestSuccess(sourceID string)
	RecordIngestFailure(sourceID string, reason string)
	RecordParseFailure(sourceID string)
	RecordIngestLatency(duration time.Duration)
	RecordScholarshipsUpserted(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	selectionToggles *prometheus.CounterVec
	recommendations  *prometheus.CounterVec
	ingestSuccess    prometheus.Counter
	ingestFail       *prometheus.CounterVec
	parseFail        prometheus.Counter
	ingestLatency    prometheus.Histogram
	upserted         prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		selectionToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarfind_selection_toggle_total",
			Help: "選択リストのトグル操作数（結果別）",
		}, []string{"kind", "domain", "action", "result"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarfind_recommendations_total",
			Help: "推薦リストの生成数（結果種別別）",
		}, []string{"domain", "outcome"}),
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarfind_ingest_success_total",
			Help: "奨学金配信元フェッチ成功の合計数",
		}),
		ingestFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarfind_ingest_fail_total",
			Help: "奨学金配信元フェッチ失敗の合計数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarfind_parse_fail_total",
			Help: "奨学金フィードパース失敗の合計数",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scholarfind_ingest_latency_seconds",
			Help:    "奨学金配信元フェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		upserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarfind_scholarships_upserted_total",
			Help: "アップサートされた奨学金の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarfind_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.selectionToggles,
		c.recommendations,
		c.ingestSuccess,
		c.ingestFail,
		c.parseFail,
		c.ingestLatency,
		c.upserted,
		c.httpStatus,
	)

	return c
}

// RecordSelectionToggle は選択リストのトグル結果を記録する。
func (c *Collector) RecordSelectionToggle(kind, domain, action, result string) {
	c.selectionToggles.WithLabelValues(kind, domain, action, result).Inc()
}

// RecordRecommendation は推薦リストの生成結果を記録する。
func (c *Collector) RecordRecommendation(domain, outcome string) {
	c.recommendations.WithLabelValues(domain, outcome).Inc()
}

// RecordIngestSuccess はフェッチ成功を記録する。
func (c *Collector) RecordIngestSuccess(sourceID string) {
	c.ingestSuccess.Inc()
}

// RecordIngestFailure はフェッチ失敗を記録する。
// reasonは stop, backoff, network などの少数の値に限る。
func (c *Collector) RecordIngestFailure(sourceID string, reason string) {
	c.ingestFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(sourceID string) {
	c.parseFail.Inc()
}

// RecordIngestLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordIngestLatency(duration time.Duration) {
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordScholarshipsUpserted はアップサートされた奨学金数を記録する。
func (c *Collector) RecordScholarshipsUpserted(count int) {
	c.upserted.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
