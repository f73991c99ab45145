// Package metrics はゲートウェイのPrometheusメトリクスを提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quill"

// ストリームの結果を表すラベル値。
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// Metrics はゲートウェイのメトリクス一式。並行に呼び出しても安全。
type Metrics struct {
	loginAttempts  *prometheus.CounterVec
	authRejections *prometheus.CounterVec
	streams        *prometheus.CounterVec
	fragments      *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	activeStreams  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New はメトリクスを生成してregに登録する。
// regがnilの場合はGo/プロセスのコレクターを含む新しいレジストリを使用する。
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "ログイン試行の回数。",
		}, []string{"outcome"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "保護されたルートで認証を拒否した回数。",
		}, []string{"reason"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "テキスト処理ストリームの回数。",
		}, []string{"operation", "outcome"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "クライアントに配信した断片の数。",
		}, []string{"operation"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "テキスト処理ストリームの所要時間。",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "配信中のストリームの数。",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.loginAttempts,
		m.authRejections,
		m.streams,
		m.fragments,
		m.streamDuration,
		m.activeStreams,
	)
	return m
}

// ObserveLogin はログイン試行を記録する。
func (m *Metrics) ObserveLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveRejection は認証の拒否を理由ごとに記録する。
func (m *Metrics) ObserveRejection(reason string) {
	m.authRejections.WithLabelValues(reason).Inc()
}

// StreamStarted は配信中のストリーム数を増やし、終了時に呼ぶ関数を返す。
func (m *Metrics) StreamStarted(operation string) func(outcome string, fragments int) {
	m.activeStreams.Inc()
	start := time.Now()
	return func(outcome string, fragments int) {
		m.activeStreams.Dec()
		m.streams.WithLabelValues(operation, outcome).Inc()
		m.fragments.WithLabelValues(operation).Add(float64(fragments))
		m.streamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Handler はPrometheus形式でメトリクスを公開するHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
