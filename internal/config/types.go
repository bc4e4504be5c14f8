package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ByteSize 以字节为单位描述容量，配置中可写整数或 "10MB"、"512KB" 等形式。
type ByteSize int64

// 二进制单位，与常见的上传限制写法保持一致。
const (
	KB ByteSize = 1 << 10
	MB ByteSize = 1 << 20
	GB ByteSize = 1 << 30
)

// ParseByteSize 解析纯数字或带单位（B/KB/MB/GB，大小写不敏感）的容量字符串。
func ParseByteSize(raw string) (ByteSize, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0, nil
	}

	unit := B
	for _, suffix := range []struct {
		text string
		size ByteSize
	}{
		{"GB", GB},
		{"MB", MB},
		{"KB", KB},
		{"B", B},
	} {
		if strings.HasSuffix(value, suffix.text) {
			unit = suffix.size
			value = strings.TrimSpace(strings.TrimSuffix(value, suffix.text))
			break
		}
	}

	number, err := strconv.ParseFloat(value, 64)
	if err != nil || number < 0 {
		return 0, fmt.Errorf("invalid byte size: %s", raw)
	}
	return ByteSize(number * float64(unit)), nil
}

// B 表示单字节单位。
const B ByteSize = 1

// Int64 返回字节数。
func (s ByteSize) Int64() int64 {
	return int64(s)
}

// String 以最大的整除单位输出，例如 10MB、512KB、1500B。
func (s ByteSize) String() string {
	switch {
	case s >= GB && s%GB == 0:
		return fmt.Sprintf("%dGB", s/GB)
	case s >= MB && s%MB == 0:
		return fmt.Sprintf("%dMB", s/MB)
	case s >= KB && s%KB == 0:
		return fmt.Sprintf("%dKB", s/KB)
	default:
		return fmt.Sprintf("%dB", int64(s))
	}
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听地址、日志与路由模块目录。
type GlobalConfig struct {
	ListenHost    string   `mapstructure:"ListenHost"`
	ListenPort    int      `mapstructure:"ListenPort"`
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFormat     string   `mapstructure:"LogFormat"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	RoutesDir     string   `mapstructure:"RoutesDir"`
	ViewsDir      string   `mapstructure:"ViewsDir"`
	ViewExtension string   `mapstructure:"ViewExtension"`
	StrictRouting bool     `mapstructure:"StrictRouting"`
	BodyLimit     ByteSize `mapstructure:"BodyLimit"`
}

// UploadConfig 决定上传文件的落盘目录与单文件大小上限。
type UploadConfig struct {
	Storage string   `mapstructure:"Storage"`
	Limit   ByteSize `mapstructure:"Limit"`
}

// SessionConfig 控制会话中间件与会话 Cookie 属性。
type SessionConfig struct {
	Enabled        bool     `mapstructure:"Enabled"`
	Secret         string   `mapstructure:"Secret"`
	CookieName     string   `mapstructure:"CookieName"`
	IdleTimeout    Duration `mapstructure:"IdleTimeout"`
	CookieSecure   bool     `mapstructure:"CookieSecure"`
	CookieHTTPOnly bool     `mapstructure:"CookieHTTPOnly"`
	CookieSameSite string   `mapstructure:"CookieSameSite"`
}

// ErrorsConfig 决定错误响应格式与日志细节。
type ErrorsConfig struct {
	ReportErrorsAs string `mapstructure:"ReportErrorsAs"`
	LogHTTPErrors  bool   `mapstructure:"LogHTTPErrors"`
	ShowStack      bool   `mapstructure:"ShowStack"`
}

// AlwaysJSON 表示是否忽略内容协商、始终以 JSON 输出错误。
func (e ErrorsConfig) AlwaysJSON() bool {
	return strings.EqualFold(strings.TrimSpace(e.ReportErrorsAs), "json")
}

// AccessRuleKind 区分字面量规则与正则规则。
type AccessRuleKind string

const (
	AccessRuleLiteral AccessRuleKind = "literal"
	AccessRuleRegex   AccessRuleKind = "regex"
)

// AccessRule 是 [Access].Public 中的一项：字符串即字面量，{ Rule = "..." } 为正则。
type AccessRule struct {
	Kind    AccessRuleKind
	Pattern string
}

// AccessConfig 描述访问控制的公开路径与登录跳转。
type AccessConfig struct {
	Public         []AccessRule `mapstructure:"Public"`
	ReservedPrefix string       `mapstructure:"ReservedPrefix"`
	LoginPath      string       `mapstructure:"LoginPath"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Upload  UploadConfig  `mapstructure:"Upload"`
	Session SessionConfig `mapstructure:"Session"`
	Errors  ErrorsConfig  `mapstructure:"Errors"`
	Access  AccessConfig  `mapstructure:"Access"`
}

// ListenAddr 返回 host:port 形式的监听地址。
func (g GlobalConfig) ListenAddr() string {
	return net.JoinHostPort(g.ListenHost, strconv.Itoa(g.ListenPort))
}
