package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/routekit/routekit/internal/version"
)

// Metrics 汇总网关、上传与模块加载的计数器，使用独立 Registry 避免全局状态。
type Metrics struct {
	reg            *prometheus.Registry
	handler        http.Handler
	accessTotal    *prometheus.CounterVec
	uploadsTotal   *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	modulesTotal   *prometheus.CounterVec
	httpErrorTotal *prometheus.CounterVec
}

// New 创建 Registry，注册 Go/进程采集器与业务计数器。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		accessTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routekit_access_decisions_total",
			Help: "Access gate decisions by outcome",
		}, []string{"outcome"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routekit_uploads_total",
			Help: "Multipart uploads by result",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routekit_upload_bytes_total",
			Help: "Bytes committed to the upload directory",
		}),
		modulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routekit_route_modules_total",
			Help: "Route module load attempts by result",
		}, []string{"result"}),
		httpErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routekit_http_errors_total",
			Help: "Error responses produced by the central error handler, by status class",
		}, []string{"class"}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routekit_build_info",
		Help: "Build metadata (value is always 1)",
	}, []string{"version", "commit"})
	buildInfo.WithLabelValues(version.Version, version.Commit).Set(1)

	reg.MustRegister(m.accessTotal, m.uploadsTotal, m.uploadBytes, m.modulesTotal, m.httpErrorTotal, buildInfo)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler 返回 Prometheus 文本格式的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// Registry 暴露底层 Registry，主要用于测试。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveAccess 记录一次网关决策（allow/deny）。
func (m *Metrics) ObserveAccess(outcome string) {
	if m == nil {
		return
	}
	m.accessTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpload 记录一次上传结果及落盘字节数。
func (m *Metrics) ObserveUpload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

// ObserveModule 记录一次模块加载结果（loaded/failed）。
func (m *Metrics) ObserveModule(result string) {
	if m == nil {
		return
	}
	m.modulesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPError 按状态码分类（4xx/5xx）记录错误响应。
func (m *Metrics) ObserveHTTPError(status int) {
	if m == nil {
		return
	}
	class := "5xx"
	if status < 500 {
		class = "4xx"
	}
	m.httpErrorTotal.WithLabelValues(class).Inc()
}
