package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus metrics for the classification service.
type Metrics struct {
	UploadsTotal     *prometheus.CounterVec
	LinesTotal       *prometheus.CounterVec
	ClassifyDuration prometheus.Histogram
	UploadBytes      prometheus.Counter
	InflightUploads  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logsieve_uploads_total",
			Help: "Total uploads by result",
		}, []string{"result"}),
		LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logsieve_lines_total",
			Help: "Total classified lines by outcome",
		}, []string{"outcome"}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsieve_classify_duration_seconds",
			Help:    "Duration of upload handling from first byte to result",
			Buckets: prometheus.DefBuckets,
		}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsieve_upload_bytes_total",
			Help: "Total request body bytes read from uploads",
		}),
		InflightUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsieve_inflight_uploads",
			Help: "Uploads currently being classified",
		}),
	}
	reg.MustRegister(
		m.UploadsTotal,
		m.LinesTotal,
		m.ClassifyDuration,
		m.UploadBytes,
		m.InflightUploads,
	)
	return m
}
