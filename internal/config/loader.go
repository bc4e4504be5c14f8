package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultPath 是未指定 --config / ROUTEKIT_CONFIG 时使用的配置文件。
const DefaultPath = "config.toml"

// DefaultListenPort 是 CLI、环境变量与配置均未指定端口时的监听端口。
const DefaultListenPort = 3000

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
		accessRuleDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Upload.Storage)
	if err != nil {
		return nil, fmt.Errorf("无法解析上传目录: %w", err)
	}
	cfg.Upload.Storage = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenHost", "0.0.0.0")
	v.SetDefault("ListenPort", DefaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("RoutesDir", "./routes")
	v.SetDefault("ViewsDir", "")
	v.SetDefault("ViewExtension", ".html")
	v.SetDefault("BodyLimit", "1MB")
	v.SetDefault("Upload.Storage", "./uploads")
	v.SetDefault("Upload.Limit", "10MB")
	v.SetDefault("Session.Enabled", true)
	v.SetDefault("Session.CookieName", "session_id")
	v.SetDefault("Session.IdleTimeout", "30m")
	v.SetDefault("Session.CookieHTTPOnly", true)
	v.SetDefault("Session.CookieSameSite", "Lax")
	v.SetDefault("Access.ReservedPrefix", "/ui")
	v.SetDefault("Access.LoginPath", "/login")
}

// bindEnv 让少量敏感或部署相关的字段可被环境变量覆盖。
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("LogLevel", "LOG_LEVEL")
	_ = v.BindEnv("Session.Secret", "SESSION_SECRET")
}

func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenHost == "" {
		g.ListenHost = "0.0.0.0"
	}
	if g.ListenPort == 0 {
		g.ListenPort = DefaultListenPort
	}
	if g.ViewExtension != "" && !strings.HasPrefix(g.ViewExtension, ".") {
		g.ViewExtension = "." + g.ViewExtension
	}
	if g.BodyLimit <= 0 {
		g.BodyLimit = MB
	}
	if cfg.Upload.Limit <= 0 {
		cfg.Upload.Limit = 10 * MB
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "session_id"
	}
	if cfg.Session.IdleTimeout.DurationValue() <= 0 {
		cfg.Session.IdleTimeout = Duration(30 * time.Minute)
	}
	if cfg.Access.LoginPath == "" {
		cfg.Access.LoginPath = "/login"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			size, err := ParseByteSize(v)
			if err != nil {
				return nil, fmt.Errorf("无法解析容量字段: %w", err)
			}
			return size, nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的容量类型: %T", v)
		}
	}
}

// accessRuleDecodeHook 将 Public 数组中的字符串/表统一为 AccessRule。
func accessRuleDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(AccessRule{})

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return AccessRule{Kind: AccessRuleLiteral, Pattern: v}, nil
		case map[string]interface{}:
			return accessRuleFromTable(v)
		case map[interface{}]interface{}:
			converted := make(map[string]interface{}, len(v))
			for key, value := range v {
				converted[fmt.Sprint(key)] = value
			}
			return accessRuleFromTable(converted)
		case AccessRule:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的访问规则类型: %T", v)
		}
	}
}

func accessRuleFromTable(table map[string]interface{}) (AccessRule, error) {
	for key, value := range table {
		pattern, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "rule", "regex":
			return AccessRule{Kind: AccessRuleRegex, Pattern: pattern}, nil
		case "path", "literal":
			return AccessRule{Kind: AccessRuleLiteral, Pattern: pattern}, nil
		}
	}
	return AccessRule{}, fmt.Errorf("访问规则缺少 Rule 字段: %v", table)
}
