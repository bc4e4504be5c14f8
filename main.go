package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/routekit/routekit/internal/access"
	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/logging"
	"github.com/routekit/routekit/internal/server"
	"github.com/routekit/routekit/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	// port/host 为空值时沿用配置文件中的监听地址。
	port int
	host string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
	// exit 可在测试中替换，避免真正退出进程。
	exit = os.Exit
)

func main() {
	defer exitOnPanic()

	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		exit(2)
		return
	}
	exit(run(opts))
}

// exitOnPanic 捕获启动或运行期间逃逸到主 goroutine 的 panic，输出调用栈后以退出码 1 结束。
// 必须直接以 defer 调用。
func exitOnPanic() {
	if recovered := recover(); recovered != nil {
		fmt.Fprintf(stdErr, "致命错误: %v\n\n%s\n", recovered, debug.Stack())
		exit(1)
	}
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	applyListenOverrides(cfg, opts)

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		rules, err := access.Compile(cfg.Access)
		if err != nil {
			fmt.Fprintf(stdErr, "访问规则无效: %v\n", err)
			return 1
		}
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["public_rules"] = rules.Len()
		fields["routes_dir"] = cfg.Global.RoutesDir
		fields["listen_addr"] = cfg.Global.ListenAddr()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 日志 → 会话/网关/上传 → 路由模块 → Fiber app → 监听”顺序，
	// 任一环节失败都在绑定端口之前退出。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.Bootstrap(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "服务初始化失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_addr"] = cfg.Global.ListenAddr()
	fields["modules_loaded"] = len(srv.Report.Loaded)
	fields["modules_failed"] = len(srv.Report.Failed)
	fields["routes"] = srv.Table.Len()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ln, err := server.Bind(cfg.Global.ListenAddr())
	if err != nil {
		logger.WithField("action", "listen").Error(err.Error())
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	if err := server.Serve(ctx, srv.App, ln, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务异常退出: %v\n", err)
		return 1
	}
	return 0
}

// applyListenOverrides 把 CLI/环境变量中的监听参数覆盖到配置上。
func applyListenOverrides(cfg *config.Config, opts cliOptions) {
	if opts.port > 0 {
		cfg.Global.ListenPort = opts.port
	}
	if opts.host != "" {
		cfg.Global.ListenHost = opts.host
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算配置路径与监听地址。
// 优先级：flag > 环境变量 > 配置文件 > 默认值。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		portFlag   int
		hostFlag   string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ROUTEKIT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&showVer, "v", false, "显示版本信息（简写）")
	fs.IntVar(&portFlag, "port", 0, "监听端口（可被 PORT 覆盖）")
	fs.IntVar(&portFlag, "p", 0, "监听端口（简写）")
	fs.StringVar(&hostFlag, "host", "", "监听地址（可被 HOST 覆盖）")
	fs.StringVar(&hostFlag, "H", "", "监听地址（简写）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ROUTEKIT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = config.DefaultPath
	}

	port := portFlag
	if port == 0 {
		if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return cliOptions{}, fmt.Errorf("解析 PORT 失败: %w", err)
			}
			port = parsed
		}
	}
	if port < 0 || port > 65535 {
		return cliOptions{}, fmt.Errorf("端口超出范围: %d", port)
	}

	host := hostFlag
	if host == "" {
		host = strings.TrimSpace(os.Getenv("HOST"))
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		port:        port,
		host:        host,
	}, nil
}
