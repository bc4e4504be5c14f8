// Package login 提供基于会话的最小登录/登出路由。
package login

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/routekit/routekit/internal/routemodule"
	"github.com/routekit/routekit/internal/session"
)

const defaultUsername = "demo"

type loginRequest struct {
	Username string `json:"username" form:"username"`
}

func init() {
	routemodule.MustRegister(routemodule.Unit{
		Key:         "login",
		Description: "Session login, status and logout",
		Factory:     register,
	})
}

func register(_ context.Context, mc *routemodule.ModuleContext) error {
	sessions := mc.Sessions
	logger := mc.Logger

	mc.Router.Get("/login", func(c fiber.Ctx) error {
		return c.JSON(sessions.State(c))
	}, "current session state")

	mc.Router.Post("/login", func(c fiber.Ctx) error {
		var req loginRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().Body(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid login payload")
			}
		}
		user := session.User{Username: strings.TrimSpace(req.Username)}
		if user.Username == "" {
			user.Username = defaultUsername
		}

		if err := sessions.Login(c, user); err != nil {
			if logger != nil {
				logger.WithError(err).Error("login requires the session middleware")
			}
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Authenticated",
			"user":    user,
		})
	}, "mark the session authenticated")

	mc.Router.Post("/logout", func(c fiber.Ctx) error {
		if err := sessions.Logout(c); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}, "destroy the session")

	return nil
}
