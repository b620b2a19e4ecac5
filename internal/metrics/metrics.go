// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// outcomeラベルの値。
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Recorder はメトリクス収集のインターフェース。
// AI解析・ストレージ・HTTP層から利用する。
type Recorder interface {
	RecordAnalysis(outcome string)
	RecordGeneration(outcome string)
	RecordAILatency(operation string, duration time.Duration)
	RecordUpload(outcome string)
	RecordBlobDelete(outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	analysis   *prometheus.CounterVec
	generation *prometheus.CounterVec
	aiLatency  *prometheus.HistogramVec
	upload     *prometheus.CounterVec
	blobDelete *prometheus.CounterVec
	httpStatus *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		analysis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaplist_analysis_total",
			Help: "画像解析の結果別件数",
		}, []string{"outcome"}),
		generation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaplist_generation_total",
			Help: "タイトル・説明文生成の結果別件数",
		}, []string{"outcome"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snaplist_ai_latency_seconds",
			Help:    "AIプロバイダ呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"operation"}),
		upload: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaplist_upload_total",
			Help: "画像アップロードの結果別件数",
		}, []string{"outcome"}),
		blobDelete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaplist_blob_delete_total",
			Help: "画像削除の結果別件数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snaplist_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.analysis,
		c.generation,
		c.aiLatency,
		c.upload,
		c.blobDelete,
		c.httpStatus,
	)

	return c
}

// RecordAnalysis は画像解析の結果を記録する。
func (c *Collector) RecordAnalysis(outcome string) {
	c.analysis.WithLabelValues(outcome).Inc()
}

// RecordGeneration は文章生成の結果を記録する。
func (c *Collector) RecordGeneration(outcome string) {
	c.generation.WithLabelValues(outcome).Inc()
}

// RecordAILatency はAIプロバイダ呼び出しのレイテンシを記録する。
func (c *Collector) RecordAILatency(operation string, duration time.Duration) {
	c.aiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpload はアップロードの結果を記録する。
func (c *Collector) RecordUpload(outcome string) {
	c.upload.WithLabelValues(outcome).Inc()
}

// RecordBlobDelete は画像削除の結果を記録する。
func (c *Collector) RecordBlobDelete(outcome string) {
	c.blobDelete.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使う。
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordAnalysis(string)                 {}
func (Nop) RecordGeneration(string)               {}
func (Nop) RecordAILatency(string, time.Duration) {}
func (Nop) RecordUpload(string)                   {}
func (Nop) RecordBlobDelete(string)               {}
func (Nop) RecordHTTPStatus(int)                  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
