package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedSameSite = map[string]struct{}{
	"lax":    {},
	"strict": {},
	"none":   {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", fmt.Sprintf("无法识别的日志级别 %q", g.LogLevel))
	}
	switch strings.ToLower(strings.TrimSpace(g.LogFormat)) {
	case "", "text", "json":
	default:
		return newFieldError("Global.LogFormat", "仅支持 text/json")
	}
	if strings.TrimSpace(g.RoutesDir) == "" {
		return newFieldError("Global.RoutesDir", "不能为空")
	}
	if g.BodyLimit <= 0 {
		return newFieldError("Global.BodyLimit", "必须大于 0")
	}

	if strings.TrimSpace(c.Upload.Storage) == "" {
		return newFieldError("Upload.Storage", "不能为空")
	}
	if c.Upload.Limit <= 0 {
		return newFieldError("Upload.Limit", "必须大于 0")
	}

	if c.Session.IdleTimeout.DurationValue() < 0 {
		return newFieldError("Session.IdleTimeout", "不能为负数")
	}
	if sameSite := strings.ToLower(strings.TrimSpace(c.Session.CookieSameSite)); sameSite != "" {
		if _, ok := supportedSameSite[sameSite]; !ok {
			return newFieldError("Session.CookieSameSite", "仅支持 Lax/Strict/None")
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Errors.ReportErrorsAs)) {
	case "", "json", "text":
	default:
		return newFieldError("Errors.ReportErrorsAs", "仅支持 json/text")
	}

	return c.Access.validate()
}

func (a AccessConfig) validate() error {
	if !strings.HasPrefix(a.LoginPath, "/") {
		return newFieldError("Access.LoginPath", "必须以 / 开头")
	}
	if a.ReservedPrefix != "" && !strings.HasPrefix(a.ReservedPrefix, "/") {
		return newFieldError("Access.ReservedPrefix", "必须以 / 开头")
	}
	for i, rule := range a.Public {
		if strings.TrimSpace(rule.Pattern) == "" {
			return newFieldError(ruleField(i), "规则不能为空")
		}
		switch rule.Kind {
		case AccessRuleLiteral, AccessRuleRegex:
		default:
			return newFieldError(ruleField(i), fmt.Sprintf("未知规则类型 %q", rule.Kind))
		}
	}
	return nil
}
