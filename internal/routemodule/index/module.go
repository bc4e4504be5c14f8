// Package index 提供站点首页：配置了视图引擎时渲染 index 模板，否则返回包元信息。
package index

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/routekit/routekit/internal/routemodule"
)

func init() {
	routemodule.MustRegister(routemodule.Unit{
		Key:         "index",
		Description: "Home page",
		Factory:     register,
	})
}

func register(_ context.Context, mc *routemodule.ModuleContext) error {
	meta := mc.Meta
	view := mc.Option("View", "index")
	render := mc.HasViews

	mc.Router.Get("/", func(c fiber.Ctx) error {
		if render {
			return c.Render(view, fiber.Map{"Meta": meta})
		}
		return c.JSON(fiber.Map{"meta": meta})
	}, "home page")
	return nil
}
