// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/pressgate/internal/sanitize"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期ワーカーと取り込み層から利用する。
type MetricsCollector interface {
	RecordSyncRun(resource string, success bool, duration time.Duration)
	RecordSyncRecords(resource string, inserted, updated int)
	RecordUpstreamStatus(statusCode int)
	RecordSanitize(resource string, report sanitize.Report)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncRuns        *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	recordsInserted *prometheus.CounterVec
	recordsUpdated  *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	droppedElements *prometheus.CounterVec
	droppedAttrs    *prometheus.CounterVec
	blockedEmbeds   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_sync_runs_total",
			Help: "リソース別・結果別の同期実行回数",
		}, []string{"resource", "result"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pressgate_sync_duration_seconds",
			Help:    "リソース別の同期処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		recordsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_records_inserted_total",
			Help: "リソース別の新規挿入レコード数",
		}, []string{"resource"}),
		recordsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_records_updated_total",
			Help: "リソース別の更新レコード数",
		}, []string{"resource"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_upstream_status_total",
			Help: "WordPress REST APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		droppedElements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_sanitize_dropped_elements_total",
			Help: "サニタイズで除去されたHTML要素の合計数",
		}, []string{"resource"}),
		droppedAttrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_sanitize_dropped_attrs_total",
			Help: "サニタイズで除去されたHTML属性の合計数",
		}, []string{"resource"}),
		blockedEmbeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressgate_sanitize_blocked_embeds_total",
			Help: "許可リスト外のため除去されたiframe埋め込みの合計数",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		c.syncRuns,
		c.syncDuration,
		c.recordsInserted,
		c.recordsUpdated,
		c.upstreamStatus,
		c.droppedElements,
		c.droppedAttrs,
		c.blockedEmbeds,
	)

	return c
}

// RecordSyncRun は同期実行の結果と処理時間を記録する。
func (c *Collector) RecordSyncRun(resource string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.syncRuns.WithLabelValues(resource, result).Inc()
	c.syncDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordSyncRecords は同期で処理されたレコード数を記録する。
func (c *Collector) RecordSyncRecords(resource string, inserted, updated int) {
	c.recordsInserted.WithLabelValues(resource).Add(float64(inserted))
	c.recordsUpdated.WithLabelValues(resource).Add(float64(updated))
}

// RecordUpstreamStatus はWordPress REST APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSanitize はサニタイズ結果の除去件数を記録する。
func (c *Collector) RecordSanitize(resource string, report sanitize.Report) {
	c.droppedElements.WithLabelValues(resource).Add(float64(report.DroppedElements))
	c.droppedAttrs.WithLabelValues(resource).Add(float64(report.DroppedAttrs))
	c.blockedEmbeds.WithLabelValues(resource).Add(float64(report.BlockedEmbeds))
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
