package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder 将指标导出到 Prometheus
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder 创建并注册指标
// 参数:
//   - reg: 注册器，传 nil 时使用 prometheus.DefaultRegisterer
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wxpay",
			Name:      "events_total",
			Help:      "wxpay API call counters",
		},
		[]string{"type", "operation", "result"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wxpay",
			Name:      "latency_seconds",
			Help:      "wxpay API call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	reg.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":      name,
		"operation": labels["operation"],
		"result":    labels["result"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
	}).Observe(d.Seconds())
}
