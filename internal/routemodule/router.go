package routemodule

import (
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// MethodAll 表示匹配全部 HTTP 方法的路由；与具体方法是不同的键。
const MethodAll = "ALL"

// RouteDescriptor 是一条待安装到 Fiber 的路由登记。
type RouteDescriptor struct {
	Module      string
	Method      string
	Path        string
	Handler     fiber.Handler
	Description string
}

func (r RouteDescriptor) key() string {
	return r.Method + " " + r.Path
}

// Router 是单元注册路由时使用的暂存路由器，只记录登记，不直接修改 Fiber 应用。
// 加载器在单元成功返回后才把其登记提交到路由表。
type Router struct {
	routes []RouteDescriptor
}

// NewRouter 创建一个空的暂存路由器，Descriptor 单元用它构建子路由。
func NewRouter() *Router {
	return &Router{}
}

// Add 按方法登记路由，desc 为可选描述。
func (r *Router) Add(method, p string, handler fiber.Handler, desc ...string) *Router {
	entry := RouteDescriptor{
		Method:  strings.ToUpper(strings.TrimSpace(method)),
		Path:    NormalizePath(p),
		Handler: handler,
	}
	if len(desc) > 0 {
		entry.Description = desc[0]
	}
	r.routes = append(r.routes, entry)
	return r
}

// Get 登记 GET 路由，Fiber 会为其自动补齐 HEAD。
func (r *Router) Get(p string, handler fiber.Handler, desc ...string) *Router {
	return r.Add(fiber.MethodGet, p, handler, desc...)
}

// Post 登记 POST 路由。
func (r *Router) Post(p string, handler fiber.Handler, desc ...string) *Router {
	return r.Add(fiber.MethodPost, p, handler, desc...)
}

// All 登记匹配全部方法的路由。
func (r *Router) All(p string, handler fiber.Handler, desc ...string) *Router {
	return r.Add(MethodAll, p, handler, desc...)
}

// Routes 返回当前登记的副本。
func (r *Router) Routes() []RouteDescriptor {
	return append([]RouteDescriptor(nil), r.routes...)
}

// mount 将子路由的全部登记加上挂载前缀后并入当前路由器。
func (r *Router) mount(mountPath string, sub *Router) {
	for _, route := range sub.routes {
		route.Path = NormalizePath(mountPath + "/" + route.Path)
		r.routes = append(r.routes, route)
	}
}

// NormalizePath 清理重复斜杠与点段，保证以 "/" 开头且（根路径除外）不以 "/" 结尾。
func NormalizePath(p string) string {
	cleaned := path.Clean("/" + p)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}
