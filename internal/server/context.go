package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const contextKeyRequestID = "_routekit_request_id"

// requestContextMiddleware 为每个请求生成请求 ID，写入 Locals 与 X-Request-ID 响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set(fiber.HeaderXRequestID, reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the request context middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
