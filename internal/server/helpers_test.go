package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/routekit/routekit/internal/config"
)

// testEnv 描述一次启动好的测试服务及其临时目录。
type testEnv struct {
	srv       *Server
	hook      *logtest.Hook
	uploadDir string
	cookies   map[string]string
}

const baseTestConfig = `
ListenPort = 3000
LogLevel = "debug"
RoutesDir = "%s"
%s

[Upload]
Storage = "%s"
Limit = "%s"

[Session]
Enabled = true
Secret = "server-test-secret"

[Errors]
ReportErrorsAs = "%s"
LogHTTPErrors = true
ShowStack = true

[Access]
Public = [
  "/",
  "/login",
  "/logout",
  { Rule = "^/echo" },
  { Rule = "^/talkback" },
  { Rule = "^/-/" },
  { Rule = "^/boom" },
]
`

type envOptions struct {
	limit          string
	reportErrorsAs string
	manifests      map[string]string
	// globals 追加到顶层的配置行，例如 ViewsDir。
	globals string
}

func defaultManifests() map[string]string {
	return map[string]string{
		"10-index.toml":  `Module = "index"`,
		"20-login.toml":  `Module = "login"`,
		"30-echo.toml":   `Module = "echo"`,
		"40-upload.toml": `Module = "upload"`,
	}
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if opts.limit == "" {
		opts.limit = "10MB"
	}
	if opts.manifests == nil {
		opts.manifests = defaultManifests()
	}

	root := t.TempDir()
	routesDir := filepath.Join(root, "routes")
	uploadDir := filepath.Join(root, "uploads")
	if err := os.MkdirAll(routesDir, 0o755); err != nil {
		t.Fatalf("mkdir routes: %v", err)
	}
	for name, content := range opts.manifests {
		if err := os.WriteFile(filepath.Join(routesDir, name), []byte(content+"\n"), 0o600); err != nil {
			t.Fatalf("write manifest %s: %v", name, err)
		}
	}

	cfgPath := filepath.Join(root, "config.toml")
	content := fmt.Sprintf(baseTestConfig, filepath.ToSlash(routesDir), opts.globals, filepath.ToSlash(uploadDir), opts.limit, opts.reportErrorsAs)
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	srv, err := Bootstrap(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return &testEnv{srv: srv, hook: hook, uploadDir: uploadDir, cookies: map[string]string{}}
}

// do 发送请求并在多次调用之间保留会话 cookie。
func (e *testEnv) do(t *testing.T, req *http.Request, cfg ...fiber.TestConfig) (*http.Response, string) {
	t.Helper()
	for name, value := range e.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := e.srv.App.Test(req, cfg...)
	if err != nil {
		t.Fatalf("app.Test %s %s failed: %v", req.Method, req.URL.Path, err)
	}
	for _, ck := range resp.Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(e.cookies, ck.Name)
			continue
		}
		e.cookies[ck.Name] = ck.Value
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) hasLog(level logrus.Level, substr string) bool {
	for _, entry := range e.hook.AllEntries() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

func newJSONRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	return req
}
