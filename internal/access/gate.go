package access

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/metrics"
)

// Reason 记录放行或拒绝的依据，按判定顺序排列。
type Reason string

const (
	ReasonLiteral       Reason = "literal"
	ReasonPattern       Reason = "pattern"
	ReasonReserved      Reason = "reserved_prefix"
	ReasonAuthenticated Reason = "authenticated"
	ReasonDenied        Reason = "unauthenticated"
)

// Decision 是一次判定的结果。
type Decision struct {
	Allow  bool
	Reason Reason
}

// Outcome 返回 "allow" 或 "deny"，用作日志与指标标签。
func (d Decision) Outcome() string {
	if d.Allow {
		return "allow"
	}
	return "deny"
}

// SessionChecker 报告当前请求是否已登录；session 包的 Manager 实现该接口。
type SessionChecker interface {
	Authenticated(c fiber.Ctx) bool
}

// Options 描述网关依赖。
type Options struct {
	Rules      *RuleSet
	LoginPath  string
	AlwaysJSON bool
	Sessions   SessionChecker
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics
}

// Gate 在任何路由处理器之前对请求做放行/拒绝判定。
type Gate struct {
	opts Options
}

// NewGate 基于已编译规则构建网关。
func NewGate(opts Options) *Gate {
	if opts.Rules == nil {
		opts.Rules = &RuleSet{literals: map[string]struct{}{}}
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	return &Gate{opts: opts}
}

// NewGateFromConfig 编译 [Access] 规则并构建网关，正则非法时返回错误。
func NewGateFromConfig(cfg *config.Config, sessions SessionChecker, logger *logrus.Logger, m *metrics.Metrics) (*Gate, error) {
	rules, err := Compile(cfg.Access)
	if err != nil {
		return nil, err
	}
	return NewGate(Options{
		Rules:      rules,
		LoginPath:  cfg.Access.LoginPath,
		AlwaysJSON: cfg.Errors.AlwaysJSON(),
		Sessions:   sessions,
		Logger:     logger,
		Metrics:    m,
	}), nil
}

// Decide 依次检查字面量、正则、保留前缀与登录状态。
func (g *Gate) Decide(path string, authenticated bool) Decision {
	rules := g.opts.Rules
	switch {
	case rules.matchLiteral(path):
		return Decision{Allow: true, Reason: ReasonLiteral}
	case rules.matchPattern(path):
		return Decision{Allow: true, Reason: ReasonPattern}
	case rules.matchPrefix(path):
		return Decision{Allow: true, Reason: ReasonReserved}
	case authenticated:
		return Decision{Allow: true, Reason: ReasonAuthenticated}
	default:
		return Decision{Allow: false, Reason: ReasonDenied}
	}
}

// Handler 返回 Fiber 中间件：放行时调用 Next，拒绝时短路响应。
func (g *Gate) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Path()
		authenticated := false
		if g.opts.Sessions != nil {
			authenticated = g.opts.Sessions.Authenticated(c)
		}

		decision := g.Decide(path, authenticated)
		g.record(path, decision)
		if decision.Allow {
			return c.Next()
		}
		return g.deny(c)
	}
}

func (g *Gate) record(path string, decision Decision) {
	g.opts.Metrics.ObserveAccess(decision.Outcome())
	if g.opts.Logger == nil {
		return
	}
	g.opts.Logger.WithFields(logrus.Fields{
		"action":  "access",
		"path":    path,
		"outcome": decision.Outcome(),
		"reason":  string(decision.Reason),
	}).Info("access decision")
}

func (g *Gate) deny(c fiber.Ctx) error {
	if WantsJSON(c, g.opts.AlwaysJSON) {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorBody(c, "Authentication required"))
	}
	return c.Redirect().Status(fiber.StatusFound).To(g.opts.LoginPath)
}

// WantsJSON 判断错误是否应以 JSON 返回：配置强制或客户端接受 application/json。
// 网关与中央错误处理器共用同一规则。
func WantsJSON(c fiber.Ctx, always bool) bool {
	if always {
		return true
	}
	return c.Accepts(fiber.MIMEApplicationJSON) != ""
}

// ErrorBody 构造统一的错误响应结构 {error:{message}, request:{method, path}}。
func ErrorBody(c fiber.Ctx, message string) fiber.Map {
	return fiber.Map{
		"error": fiber.Map{"message": message},
		"request": fiber.Map{
			"method": c.Method(),
			"path":   c.Path(),
		},
	}
}
