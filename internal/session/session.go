// Package session 封装 Fiber session 中间件与 encryptcookie，作为网关与登录路由的会话协作者。
// 会话数据只保存在进程内存中，每个客户端一个会话，互不共享。
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/extractors"
	"github.com/gofiber/fiber/v3/middleware/encryptcookie"
	fibersession "github.com/gofiber/fiber/v3/middleware/session"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/config"
)

const (
	keyAuthenticated = "authenticated"
	keyUsername      = "username"
)

// User 是会话中保存的用户记录。
type User struct {
	Username string `json:"username"`
}

// State 描述当前请求的会话状态。
type State struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// Manager 持有会话中间件与 cookie 加密密钥。Session 关闭时为 nil，所有方法都可安全调用。
type Manager struct {
	cookieName string
	cookieKey  string
	session    fiber.Handler
	ephemeral  bool
}

// NewManager 根据 [Session] 配置构建管理器；Enabled=false 时返回 nil。
// Secret 为空时生成临时密钥并记录 warning，进程重启后已有会话全部失效。
func NewManager(cfg config.SessionConfig, logger *logrus.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	secret := strings.TrimSpace(cfg.Secret)
	ephemeral := false
	if secret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, apperr.Internal(err, "generate session secret")
		}
		secret = hex.EncodeToString(raw)
		ephemeral = true
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"action": "session_secret",
			}).Warn("SESSION_SECRET 未设置，已生成临时会话密钥，重启后会话将失效")
		}
	}

	name := cfg.CookieName
	if name == "" {
		name = "session_id"
	}

	handler := fibersession.New(fibersession.Config{
		Extractor:      extractors.FromCookie(name),
		IdleTimeout:    cfg.IdleTimeout.DurationValue(),
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: cfg.CookieHTTPOnly,
		CookieSameSite: cfg.CookieSameSite,
		CookiePath:     "/",
	})

	return &Manager{
		cookieName: name,
		cookieKey:  deriveKey(secret),
		session:    handler,
		ephemeral:  ephemeral,
	}, nil
}

// deriveKey 将任意长度的密钥压缩为 encryptcookie 需要的 32 字节 base64 key。
func deriveKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Ephemeral 表示当前密钥是否为启动时临时生成。
func (m *Manager) Ephemeral() bool {
	return m != nil && m.ephemeral
}

// CookieName 返回会话 cookie 名称。
func (m *Manager) CookieName() string {
	if m == nil {
		return ""
	}
	return m.cookieName
}

// Middleware 返回需要按顺序挂载的 encryptcookie 与 session 中间件。
func (m *Manager) Middleware() []fiber.Handler {
	if m == nil {
		return nil
	}
	return []fiber.Handler{
		encryptcookie.New(encryptcookie.Config{Key: m.cookieKey}),
		m.session,
	}
}

// State 读取当前请求的会话状态；未启用会话或无会话时返回未登录。
func (m *Manager) State(c fiber.Ctx) State {
	sess := m.current(c)
	if sess == nil {
		return State{}
	}
	authed, _ := sess.Get(keyAuthenticated).(bool)
	if !authed {
		return State{}
	}
	state := State{Authenticated: true}
	if name, ok := sess.Get(keyUsername).(string); ok {
		state.User = &User{Username: name}
	}
	return state
}

// Authenticated 满足 access.SessionChecker。
func (m *Manager) Authenticated(c fiber.Ctx) bool {
	return m.State(c).Authenticated
}

// Login 将会话标记为已登录。会话中间件未挂载时返回 ConfigurationError。
func (m *Manager) Login(c fiber.Ctx, user User) error {
	sess := m.current(c)
	if sess == nil {
		return apperr.Configuration("Session middleware not configured")
	}
	if err := sess.Regenerate(); err != nil {
		return apperr.Internal(err, "regenerate session")
	}
	sess.Set(keyAuthenticated, true)
	sess.Set(keyUsername, user.Username)
	return nil
}

// Logout 销毁会话并清理 cookie，可重复调用。
func (m *Manager) Logout(c fiber.Ctx) error {
	if m == nil {
		return nil
	}
	if sess := m.current(c); sess != nil {
		if err := sess.Destroy(); err != nil {
			return apperr.Internal(err, "destroy session")
		}
	}
	c.ClearCookie(m.cookieName)
	return nil
}

func (m *Manager) current(c fiber.Ctx) *fibersession.Middleware {
	if m == nil {
		return nil
	}
	return fibersession.FromContext(c)
}
