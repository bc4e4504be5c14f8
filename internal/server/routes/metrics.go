package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/routekit/routekit/internal/metrics"
)

// RegisterMetricsRoute 通过 adaptor 将 Prometheus 处理器挂到 /-/metrics。
func RegisterMetricsRoute(app fiber.Router, m *metrics.Metrics) {
	if app == nil || m == nil {
		return
	}
	app.Get("/-/metrics", adaptor.HTTPHandler(m.Handler()))
}
