package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 进程内指标（Prometheus 注册表，运行结束时可写成 textfile）：
// - hltascleaner_op_total{comp,stage,result}
// - hltascleaner_error_total{comp,code}
// - hltascleaner_op_duration_ms{comp,stage}
// - hltascleaner_lines_total{pass,kind}   kind=changed|removed
var (
	registry = prometheus.NewRegistry()

	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hltascleaner",
		Name:      "op_total",
		Help:      "Operations by component, stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hltascleaner",
		Name:      "error_total",
		Help:      "Errors by component and classified code.",
	}, []string{"comp", "code"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hltascleaner",
		Name:      "op_duration_ms",
		Help:      "Stage duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"comp", "stage"})

	linesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hltascleaner",
		Name:      "lines_total",
		Help:      "Script lines changed or removed by each cleaning pass.",
	}, []string{"pass", "kind"})
)

func init() {
	registry.MustRegister(opTotal, errorTotal, opDuration, linesTotal)
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// AddLines 记录某个 pass 改写/删除的行数。
func AddLines(pass string, changed, removed int) {
	if changed > 0 {
		linesTotal.WithLabelValues(pass, "changed").Add(float64(changed))
	}
	if removed > 0 {
		linesTotal.WithLabelValues(pass, "removed").Add(float64(removed))
	}
}

// WriteMetrics 以 Prometheus 文本格式原子写出全部指标（node_exporter textfile 约定）。
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
