package server

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/template/html/v3"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/access"
	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/metrics"
	"github.com/routekit/routekit/internal/routemodule"
	"github.com/routekit/routekit/internal/session"
	"github.com/routekit/routekit/internal/upload"
	"github.com/routekit/routekit/internal/version"
)

// Server 是启动阶段组装出的完整服务。
type Server struct {
	App      *fiber.App
	Report   routemodule.Report
	Table    *routemodule.Table
	Metrics  *metrics.Metrics
	Sessions *session.Manager
}

// Bootstrap 按 “指标 → 会话 → 访问规则 → 上传目录 → 模块加载 → Fiber 应用” 的顺序装配服务。
// 访问规则编译失败或上传目录不可用时返回错误；单个模块失败只会出现在 Report 中。
func Bootstrap(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	m := metrics.New()

	sessions, err := session.NewManager(cfg.Session, logger)
	if err != nil {
		return nil, err
	}

	gate, err := access.NewGateFromConfig(cfg, sessions, logger, m)
	if err != nil {
		return nil, err
	}

	uploads, err := upload.NewPipeline(cfg.Upload, logger, m)
	if err != nil {
		return nil, err
	}

	views := newViews(cfg.Global)

	base := routemodule.ModuleContext{
		Config:   cfg,
		Meta:     version.Current(),
		Sessions: sessions,
		Uploads:  uploads,
		Metrics:  m,
		HasViews: views != nil,
	}
	loader := routemodule.NewLoader(cfg.Global.RoutesDir, base, routemodule.NewTable(), logger, m)
	report, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	opts := AppOptions{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Sessions: sessions,
		Gate:     gate,
		Table:    loader.Table(),
		Report:   report,
	}
	if views != nil {
		opts.Views = views
	}
	app, err := NewApp(opts)
	if err != nil {
		return nil, err
	}

	return &Server{
		App:      app,
		Report:   report,
		Table:    loader.Table(),
		Metrics:  m,
		Sessions: sessions,
	}, nil
}

// newViews 在配置了 ViewsDir 时创建 html 模板引擎。
func newViews(cfg config.GlobalConfig) *html.Engine {
	dir := strings.TrimSpace(cfg.ViewsDir)
	if dir == "" {
		return nil
	}
	ext := cfg.ViewExtension
	if ext == "" {
		ext = ".html"
	}
	return html.New(dir, ext)
}
