package server

// 内置路由单元在 init() 中注册；是否挂载由 RoutesDir 中的清单决定。
import (
	_ "github.com/routekit/routekit/internal/routemodule/echo"
	_ "github.com/routekit/routekit/internal/routemodule/index"
	_ "github.com/routekit/routekit/internal/routemodule/login"
	_ "github.com/routekit/routekit/internal/routemodule/upload"
)
