package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Bind 先建立监听套接字，以便把权限不足与端口占用区分为可读的 BindError。
func Bind(addr string) (net.Listener, error) {
	ln, err := net.Listen(fiber.NetworkTCP, addr)
	if err != nil {
		return nil, classifyBindError(addr, err)
	}
	return ln, nil
}

func classifyBindError(addr string, err error) error {
	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, os.ErrPermission):
		return apperr.Bind(err, fmt.Sprintf("%s requires elevated privileges", addr))
	case errors.Is(err, syscall.EADDRINUSE):
		return apperr.Bind(err, fmt.Sprintf("%s is already in use", addr))
	default:
		return apperr.Bind(err, fmt.Sprintf("cannot listen on %s: %v", addr, err))
	}
}

// Serve 在已绑定的监听器上运行应用，ctx 取消后优雅关闭。
func Serve(ctx context.Context, app *fiber.App, ln net.Listener, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   ln.Addr().String(),
	}).Info(fmt.Sprintf("%s v%s listening on http://%s (pid %d)", version.Name, version.Version, ln.Addr().String(), os.Getpid()))

	err := app.Listener(ln, fiber.ListenConfig{
		GracefulContext:       ctx,
		ShutdownTimeout:       shutdownTimeout,
		DisableStartupMessage: true,
	})
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	logger.WithField("action", "shutdown").Info("server stopped")
	return nil
}
