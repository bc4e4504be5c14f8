package routemodule

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gofiber/fiber/v3"
)

// Shadow 记录一次同方法同路径的覆盖：后加载的模块胜出，先前的登记被移除。
type Shadow struct {
	Method   string
	Path     string
	Previous string
	Winner   string
}

// Table 是全部模块提交后的最终路由表。规则：同一 Method + 规范化 Path 上，后加载者胜出。
// ALL 与具体方法是不同的键，两者可以共存，Fiber 按安装顺序匹配。
type Table struct {
	mu        sync.RWMutex
	routes    []RouteDescriptor
	installed bool
}

// NewTable 创建空路由表。
func NewTable() *Table {
	return &Table{}
}

// validate 在提交前检查一个模块的全部登记，任一非法则整个模块作废。
func validate(routes []RouteDescriptor) error {
	for _, route := range routes {
		if route.Handler == nil {
			return fmt.Errorf("route %s %s has no handler", route.Method, route.Path)
		}
		if route.Method != MethodAll && !slices.Contains(fiber.DefaultMethods, route.Method) {
			return fmt.Errorf("route %s %s uses an unsupported method", route.Method, route.Path)
		}
	}
	return nil
}

// Commit 将一个模块的登记并入路由表，返回被覆盖的登记。
func (t *Table) Commit(module string, routes []RouteDescriptor) ([]Shadow, error) {
	if err := validate(routes); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed {
		return nil, errors.New("route table already installed")
	}

	var shadows []Shadow
	for _, route := range routes {
		route.Module = module
		key := route.key()
		for i, existing := range t.routes {
			if existing.key() != key {
				continue
			}
			shadows = append(shadows, Shadow{
				Method:   route.Method,
				Path:     route.Path,
				Previous: existing.Module,
				Winner:   module,
			})
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			break
		}
		t.routes = append(t.routes, route)
	}
	return shadows, nil
}

// Routes 返回当前路由表的副本，按安装顺序排列。
func (t *Table) Routes() []RouteDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]RouteDescriptor(nil), t.routes...)
}

// Len 返回路由条数。
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// Install 将路由表安装到 Fiber 路由器，之后路由表冻结，不再接受提交。
func (t *Table) Install(r fiber.Router) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed {
		return errors.New("route table already installed")
	}
	for _, route := range t.routes {
		if route.Method == MethodAll {
			r.All(route.Path, route.Handler)
			continue
		}
		r.Add([]string{route.Method}, route.Path, route.Handler)
	}
	t.installed = true
	return nil
}
