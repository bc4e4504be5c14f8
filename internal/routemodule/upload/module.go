// Package upload 挂载上传路由：GET 返回上传配置，POST 交给上传管道处理 multipart 请求体。
package upload

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/routekit/routekit/internal/routemodule"
)

func init() {
	routemodule.MustRegister(routemodule.Unit{
		Key:         "upload",
		Description: "Multipart file upload",
		Factory:     register,
	})
}

func register(_ context.Context, mc *routemodule.ModuleContext) error {
	pipeline := mc.Uploads
	if pipeline == nil {
		return errors.New("upload pipeline not configured")
	}

	mc.Router.Get("/upload", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"upload": fiber.Map{
				"dir":         pipeline.Dir(),
				"maxFileSize": pipeline.Limit().Int64(),
			},
		})
	}, "upload configuration")
	mc.Router.Post("/upload", pipeline.Handler(), "accept multipart/form-data")
	return nil
}
