package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/access"
	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/logging"
	"github.com/routekit/routekit/internal/metrics"
	"github.com/routekit/routekit/internal/routemodule"
	"github.com/routekit/routekit/internal/server/routes"
	"github.com/routekit/routekit/internal/session"
	"github.com/routekit/routekit/internal/version"
)

// AppOptions 汇总构建 Fiber 应用所需的全部依赖。
type AppOptions struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Sessions *session.Manager
	Gate     *access.Gate
	Table    *routemodule.Table
	Report   routemodule.Report
	Views    fiber.Views
}

// NewApp 按固定顺序装配中间件链：
// recover → request id → helmet → compress → access log → session → gate → 模块路由 → 诊断 → not-found。
// 错误处理器位于链路之外，负责把所有返回的错误转换为响应。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("access gate is required")
	}
	if opts.Table == nil {
		return nil, errors.New("route table is required")
	}

	cfg := opts.Config
	app := fiber.New(fiber.Config{
		AppName:           version.Name + " v" + version.Version,
		CaseSensitive:     true,
		StrictRouting:     cfg.Global.StrictRouting,
		BodyLimit:         int(cfg.Global.BodyLimit.Int64()),
		StreamRequestBody: true,
		// 关闭 fasthttp 的 multipart 预解析，请求体在网关之后才由上传管线按流读取。
		DisablePreParseMultipartForm: true,
		Views:                        opts.Views,
		ErrorHandler:                 newErrorHandler(cfg.Errors, opts.Logger, opts.Metrics),
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace:  cfg.Errors.ShowStack,
		StackTraceHandler: stackTraceHandler(opts.Logger),
	}))
	app.Use(requestContextMiddleware())
	app.Use(helmet.New())
	app.Use(compress.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: fiberlogger.CombinedFormat,
		Stream: logging.AccessWriter(opts.Logger),
	}))
	for _, handler := range opts.Sessions.Middleware() {
		app.Use(handler)
	}
	app.Use(opts.Gate.Handler())

	if err := opts.Table.Install(app); err != nil {
		return nil, err
	}

	routes.RegisterModuleRoutes(app, opts.Report, opts.Table)
	routes.RegisterMetricsRoute(app, opts.Metrics)

	app.Use(notFoundHandler())
	return app, nil
}
