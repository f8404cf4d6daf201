// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginLocked  = "locked"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア・サービス層・ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLogin(result string)
	RecordRegistration()
	RecordTransition(kind, to string)
	RecordNotification(channel string, err error)
	RecordArchived(kind string, count int64)
	RecordEscalated(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	logins         *prometheus.CounterVec
	registrations  prometheus.Counter
	transitions    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	archived       *prometheus.CounterVec
	escalated      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolportal_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolportal_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolportal_registrations_total",
			Help: "新規ユーザー登録の合計数",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolportal_status_transitions_total",
			Help: "種別・遷移先ステータス別のステータス変更数",
		}, []string{"kind", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolportal_notifications_total",
			Help: "チャネル・結果別の通知送信数",
		}, []string{"channel", "result"}),
		archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolportal_archived_total",
			Help: "種別ごとにアーカイブされたレコード数",
		}, []string{"kind"}),
		escalated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolportal_overdue_escalated_total",
			Help: "期限超過により優先度を引き上げた書類申請数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.logins,
		c.registrations,
		c.transitions,
		c.notifications,
		c.archived,
		c.escalated,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordTransition はステータス変更を記録する。
func (c *Collector) RecordTransition(kind, to string) {
	c.transitions.WithLabelValues(kind, to).Inc()
}

// RecordNotification は通知送信の結果を記録する。
func (c *Collector) RecordNotification(channel string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.notifications.WithLabelValues(channel, result).Inc()
}

// RecordArchived はアーカイブ件数を記録する。
func (c *Collector) RecordArchived(kind string, count int64) {
	c.archived.WithLabelValues(kind).Add(float64(count))
}

// RecordEscalated は優先度を引き上げた件数を記録する。
func (c *Collector) RecordEscalated(count int) {
	c.escalated.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
