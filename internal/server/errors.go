package server

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/access"
	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/logging"
	"github.com/routekit/routekit/internal/metrics"
)

const internalMessage = "Internal Server Error"

// newErrorHandler 构建中央错误处理器：状态码来自错误本身（缺省 500），
// >=500 记 error，其余记 warn；仅在 ShowStack 打开时输出调用栈。
func newErrorHandler(cfg config.ErrorsConfig, logger *logrus.Logger, m *metrics.Metrics) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := apperr.StatusOf(err)
		message := publicMessage(err, status)

		routed := hasRoute(c)
		fields := logrus.Fields{}
		if routed {
			fields = logging.RequestFields(c.Method(), c.Path(), RequestID(c))
		}
		fields["action"] = "http_error"
		fields["status"] = status
		fields["kind"] = string(apperr.KindOf(err))
		if cfg.ShowStack && status >= fiber.StatusInternalServerError {
			if stack := apperr.Stack(err); stack != "" {
				fields["stack"] = stack
			}
		}

		entry := logger.WithFields(fields)
		if status >= fiber.StatusInternalServerError {
			entry.Error(err.Error())
		} else if !isQuietNotFound(err, cfg) {
			entry.Warn(err.Error())
		}
		m.ObserveHTTPError(status)

		c.Status(status)
		if access.WantsJSON(c, cfg.AlwaysJSON()) {
			body := access.ErrorBody(c, message)
			if !routed {
				delete(body, "request")
			}
			return c.JSON(body)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(message)
	}
}

// publicMessage 返回对客户端可见的消息；未分类的 5xx 错误不暴露内部细节。
func publicMessage(err error, status int) string {
	var appErr *apperr.Error
	var fiberErr *fiber.Error
	if status >= fiber.StatusInternalServerError && !errors.As(err, &appErr) && !errors.As(err, &fiberErr) {
		return internalMessage
	}
	return apperr.Message(err)
}

// isQuietNotFound 未开启 LogHTTPErrors 时，未匹配路由产生的 404 不写日志。
func isQuietNotFound(err error, cfg config.ErrorsConfig) bool {
	return !cfg.LogHTTPErrors && apperr.KindOf(err) == apperr.KindNotFound
}

// hasRoute 判断请求是否经过了路由分发。fasthttp 在读取请求失败时以全新的上下文调用错误处理器，
// 此时 method/path 是默认值而非客户端的真实请求，Fiber 给出的是没有处理器的占位路由。
func hasRoute(c fiber.Ctx) bool {
	route := c.Route()
	return route != nil && len(route.Handlers) > 0
}

// notFoundHandler 是链路末端的兜底处理器，把请求转换为 NotFoundError。
func notFoundHandler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return apperr.NotFound("Not found: [%s] %s", c.Method(), c.OriginalURL())
	}
}

// stackTraceHandler 在 ShowStack 打开时记录 panic 的完整调用栈。
func stackTraceHandler(logger *logrus.Logger) func(fiber.Ctx, any) {
	return func(c fiber.Ctx, recovered any) {
		fields := logging.RequestFields(c.Method(), c.Path(), RequestID(c))
		fields["action"] = "panic"
		fields["stack"] = string(debug.Stack())
		logger.WithFields(fields).Error(fmt.Sprintf("panic: %v", recovered))
	}
}
