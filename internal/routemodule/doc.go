// Package routemodule 聚合编译进二进制的路由单元，并在启动阶段按 RoutesDir 中的清单加载它们。
//
// 单元作者需要：
//  1. 在 internal/routemodule/<unit-key>/ 目录下实现 Factory 或 Descriptor 之一；
//  2. 在 init() 中调用 MustRegister 注册 Unit；
//  3. 在 internal/server/modules.go 中以空白导入引入该包。
//
// 注册（编译期目录）与发现（运行期清单扫描）相互独立：只有 RoutesDir 中存在清单的单元才会被挂载。
package routemodule
