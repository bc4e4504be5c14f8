package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfigPath 指向 testdata 下的样例配置。
func testConfigPath(name string) string {
	return filepath.Join("testdata", name)
}

// writeTempConfig 把 TOML 片段写入临时目录，返回配置文件路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
