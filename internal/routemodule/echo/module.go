// Package echo 以 descriptor 形式导出 /echo 与 /talkback，把请求原样回显为 JSON。
package echo

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/routekit/routekit/internal/routemodule"
	"github.com/routekit/routekit/internal/version"
)

func init() {
	routemodule.MustRegister(routemodule.Unit{
		Key:         "echo",
		Description: "Echo request metadata back as JSON",
		Descriptor:  describe,
	})
}

func describe(mc *routemodule.ModuleContext) (routemodule.Descriptor, error) {
	handler := echoHandler(mc.Meta)
	router := routemodule.NewRouter().
		All("/echo", handler, "echo the request").
		All("/talkback", handler, "alias of /echo")
	return routemodule.Descriptor{Router: router, MountPath: "/"}, nil
}

func echoHandler(meta version.Meta) fiber.Handler {
	return func(c fiber.Ctx) error {
		request := fiber.Map{
			"headers": flattenHeaders(c.GetReqHeaders()),
			"query":   c.Queries(),
			"params":  routeParams(c),
			"ip":      c.IP(),
		}
		if body := requestBody(c); body != nil {
			request["body"] = body
		}
		return c.JSON(fiber.Map{
			"meta":    meta,
			"request": request,
		})
	}
}

func flattenHeaders(headers map[string][]string) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		result[key] = strings.Join(values, ", ")
	}
	return result
}

func routeParams(c fiber.Ctx) map[string]string {
	params := make(map[string]string)
	if route := c.Route(); route != nil {
		for _, name := range route.Params {
			params[name] = c.Params(name)
		}
	}
	return params
}

// requestBody 对 JSON 请求体解码，其他类型按字符串返回；空请求体返回 nil。
func requestBody(c fiber.Ctx) any {
	raw := c.Body()
	if len(raw) == 0 {
		return nil
	}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}
	return string(raw)
}
