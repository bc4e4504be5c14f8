package routemodule

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/metrics"
	"github.com/routekit/routekit/internal/session"
	"github.com/routekit/routekit/internal/upload"
	"github.com/routekit/routekit/internal/version"
)

// Kind 是路由单元导出契约的标签集合。
type Kind string

const (
	KindFactory    Kind = "factory"
	KindDescriptor Kind = "descriptor"
	KindInvalid    Kind = "invalid"
)

// Factory 接收模块上下文，自行向 mc.Router 注册路由。返回前必须完成全部注册。
type Factory func(ctx context.Context, mc *ModuleContext) error

// DescriptorFunc 返回一个子路由与挂载路径，由加载器负责挂载。
type DescriptorFunc func(mc *ModuleContext) (Descriptor, error)

// Descriptor 描述一个待挂载的子路由。
type Descriptor struct {
	Router    *Router
	MountPath string
}

// Unit 是编译期注册的路由单元，Factory 与 Descriptor 必须且只能设置一个。
type Unit struct {
	Key         string
	Description string
	Factory     Factory
	Descriptor  DescriptorFunc
}

// Kind 将单元归一化为 KindFactory、KindDescriptor 或 KindInvalid。
func (u Unit) Kind() Kind {
	switch {
	case u.Factory != nil && u.Descriptor == nil:
		return KindFactory
	case u.Descriptor != nil && u.Factory == nil:
		return KindDescriptor
	default:
		return KindInvalid
	}
}

// ModuleContext 是启动时构建一次、按引用传给每个单元的显式上下文。
// 每个单元拿到的是浅拷贝：Router、Logger 与 Manifest 为该单元独有，其余字段共享。
type ModuleContext struct {
	Router   *Router
	Logger   *logrus.Entry
	Config   *config.Config
	Meta     version.Meta
	Sessions *session.Manager
	Uploads  *upload.Pipeline
	Metrics  *metrics.Metrics
	HasViews bool
	Manifest Manifest
}

// Option 读取清单 [Options] 中的字符串项，不存在时返回 fallback。
// viper 会把键名转为小写，因此查找时忽略大小写。
func (mc *ModuleContext) Option(key, fallback string) string {
	if mc == nil || mc.Manifest.Options == nil {
		return fallback
	}
	if value, ok := mc.Manifest.Options[strings.ToLower(key)]; ok {
		if s, ok := value.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// Manifest 对应 RoutesDir 中的一个 *.toml 清单文件。
type Manifest struct {
	File        string         `mapstructure:"-"`
	Module      string         `mapstructure:"Module"`
	MountPath   string         `mapstructure:"MountPath"`
	Enabled     *bool          `mapstructure:"Enabled"`
	Description string         `mapstructure:"Description"`
	Options     map[string]any `mapstructure:"Options"`
}

// IsEnabled 未显式声明 Enabled 时视为启用。
func (m Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
