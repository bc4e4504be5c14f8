package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/routekit/routekit/internal/routemodule"
)

// RegisterModuleRoutes 暴露 /-/modules 诊断接口，列出已加载模块、失败模块与最终路由表。
func RegisterModuleRoutes(app fiber.Router, report routemodule.Report, table *routemodule.Table) {
	if app == nil || table == nil {
		return
	}

	app.Get("/-/modules", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"units":    encodeUnits(routemodule.List(), report),
			"loaded":   report.Loaded,
			"failed":   report.Failed,
			"shadowed": report.Shadowed,
			"routes":   encodeRoutes(table.Routes()),
		}
		return c.JSON(payload)
	})

	app.Get("/-/modules/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "module_key_required"})
		}
		unit, ok := routemodule.Resolve(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "module_not_found"})
		}
		encoded := encodeUnit(unit, report)
		var owned []routePayload
		for _, route := range encodeRoutes(table.Routes()) {
			if route.Module == unit.Key {
				owned = append(owned, route)
			}
		}
		return c.JSON(fiber.Map{"unit": encoded, "routes": owned})
	})
}

type unitPayload struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Loaded      bool   `json:"loaded"`
}

type routePayload struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Module      string `json:"module"`
	Description string `json:"description,omitempty"`
}

func encodeUnits(units []routemodule.Unit, report routemodule.Report) []unitPayload {
	if len(units) == 0 {
		return nil
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].Key < units[j].Key
	})
	result := make([]unitPayload, 0, len(units))
	for _, unit := range units {
		result = append(result, encodeUnit(unit, report))
	}
	return result
}

func encodeUnit(unit routemodule.Unit, report routemodule.Report) unitPayload {
	loaded := false
	for _, item := range report.Loaded {
		if item.Module == unit.Key {
			loaded = true
			break
		}
	}
	return unitPayload{
		Key:         unit.Key,
		Description: unit.Description,
		Kind:        string(unit.Kind()),
		Loaded:      loaded,
	}
}

func encodeRoutes(routes []routemodule.RouteDescriptor) []routePayload {
	if len(routes) == 0 {
		return nil
	}
	result := make([]routePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, routePayload{
			Method:      route.Method,
			Path:        route.Path,
			Module:      route.Module,
			Description: route.Description,
		})
	}
	return result
}
