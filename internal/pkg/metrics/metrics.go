package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約作成の結果（status: confirmed, idempotent_replay, unavailable, invalid, error）
	ReservationsTotal *prometheus.CounterVec

	// 競合リトライ（reason: overlap_race, storage）
	ConflictRetriesTotal *prometheus.CounterVec

	// 状態遷移（action, result: success, rejected, forbidden, error）
	TransitionsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/contended/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 配送できずに破棄された通知（sink）
	NotificationsDropped *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation attempts by outcome",
			},
			[]string{"status"},
		),
		ConflictRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_conflict_retries_total",
				Help: "Store writes re-executed by the conflict retry policy",
			},
			[]string{"reason"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_transitions_total",
				Help: "Lifecycle transitions by action and result",
			},
			[]string{"action", "result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		NotificationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_notifications_dropped_total",
				Help: "Lifecycle notifications dropped because a sink was full or failing",
			},
			[]string{"sink"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.ConflictRetriesTotal,
		m.TransitionsTotal,
		m.DistributedLockDuration,
		m.NotificationsDropped,
	)

	return m
}

// IncReservation は予約結果をカウントする（nil でも安全）
func (m *Metrics) IncReservation(status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

// IncRetry は競合リトライをカウントする（nil でも安全）
func (m *Metrics) IncRetry(reason string) {
	if m == nil {
		return
	}
	m.ConflictRetriesTotal.WithLabelValues(reason).Inc()
}

// IncTransition は状態遷移をカウントする（nil でも安全）
func (m *Metrics) IncTransition(action, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, result).Inc()
}

// ObserveLock はロック操作時間を記録する（nil でも安全）
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}

// IncDropped は破棄した通知をカウントする（nil でも安全）
func (m *Metrics) IncDropped(sink string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(sink).Inc()
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
