package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Name 与 Description 作为包元数据输出到 /、/echo 等接口的 meta 字段。
const (
	Name        = "routekit"
	Description = "Fiber bootstrap with pluggable route modules, access gate and upload pipeline"
)

// Meta 描述对外暴露的包信息。
type Meta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Current 返回当前构建的包信息。
func Current() Meta {
	return Meta{
		Name:        Name,
		Description: Description,
		Version:     Version,
	}
}

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}
