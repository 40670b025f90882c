// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
	SetRelayConnections(n int)
	RecordBroadcast(delivered, failed int)
	RecordFollowOp(op, result string)
	RecordMediaOp(op, result string)
	RecordStatusesExpired(count int64)
	RecordNotificationsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	requestDuration     prometheus.Histogram
	relayConnections    prometheus.Gauge
	relayDelivered      prometheus.Counter
	relayFailed         prometheus.Counter
	followOps           *prometheus.CounterVec
	mediaOps            *prometheus.CounterVec
	statusesExpired     prometheus.Counter
	notificationsPurged prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kizuna_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kizuna_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		relayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kizuna_relay_connections",
			Help: "リレーに登録中の接続数",
		}),
		relayDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kizuna_relay_delivered_total",
			Help: "配信に成功したメッセージの合計数",
		}),
		relayFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kizuna_relay_failed_total",
			Help: "配信に失敗したメッセージの合計数",
		}),
		followOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kizuna_follow_ops_total",
			Help: "フォロー操作の結果別の合計数",
		}, []string{"op", "result"}),
		mediaOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kizuna_media_ops_total",
			Help: "メディアホスト操作の結果別の合計数",
		}, []string{"op", "result"}),
		statusesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kizuna_statuses_expired_total",
			Help: "スイープで期限切れにしたステータスの合計数",
		}),
		notificationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kizuna_notifications_purged_total",
			Help: "保持期間を過ぎて削除した通知の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestDuration,
		c.relayConnections,
		c.relayDelivered,
		c.relayFailed,
		c.followOps,
		c.mediaOps,
		c.statusesExpired,
		c.notificationsPurged,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// SetRelayConnections は登録中の接続数を設定する。
func (c *Collector) SetRelayConnections(n int) {
	c.relayConnections.Set(float64(n))
}

// RecordBroadcast は1回の配信の成功数と失敗数を記録する。
func (c *Collector) RecordBroadcast(delivered, failed int) {
	c.relayDelivered.Add(float64(delivered))
	c.relayFailed.Add(float64(failed))
}

// RecordFollowOp はフォロー・アンフォローの結果を記録する。
func (c *Collector) RecordFollowOp(op, result string) {
	c.followOps.WithLabelValues(op, result).Inc()
}

// RecordMediaOp はメディアのアップロード・削除の結果を記録する。
func (c *Collector) RecordMediaOp(op, result string) {
	c.mediaOps.WithLabelValues(op, result).Inc()
}

// RecordStatusesExpired は期限切れにしたステータス数を記録する。
func (c *Collector) RecordStatusesExpired(count int64) {
	c.statusesExpired.Add(float64(count))
}

// RecordNotificationsPurged は削除した通知数を記録する。
func (c *Collector) RecordNotificationsPurged(count int64) {
	c.notificationsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewRegistry はGoランタイムとプロセスのコレクターを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
