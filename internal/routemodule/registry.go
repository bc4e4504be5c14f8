package routemodule

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

type registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

func newRegistry() *registry {
	return &registry{units: make(map[string]Unit)}
}

// Register 将路由单元加入全局目录，重复键会返回错误。
func Register(unit Unit) error {
	return globalRegistry.register(unit)
}

// MustRegister 在注册失败时 panic，适合单元 init() 中调用。
func MustRegister(unit Unit) {
	if err := Register(unit); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的路由单元。
func Resolve(key string) (Unit, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的路由单元列表。
func List() []Unit {
	return globalRegistry.list()
}

// Keys 返回所有已注册单元的键值，供诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, unit := range items {
		result[i] = unit.Key
	}
	return result
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(unit Unit) error {
	key := normalizeKey(unit.Key)
	if key == "" {
		return fmt.Errorf("unit key is required")
	}
	unit.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[key]; exists {
		return fmt.Errorf("unit %s already registered", key)
	}
	r.units[key] = unit
	return nil
}

func (r *registry) resolve(key string) (Unit, bool) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return Unit{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[normalized]
	return unit, ok
}

func (r *registry) list() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.units) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.units))
	for key := range r.units {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Unit, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.units[key])
	}
	return result
}
