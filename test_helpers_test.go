package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

// cliOutput 捕获 run 写入 stdOut/stdErr 的内容。
type cliOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// captureOutput 在测试期间把 stdOut/stdErr 指向内存缓冲，结束后恢复。
func captureOutput(t *testing.T) *cliOutput {
	t.Helper()
	out := &cliOutput{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &out.stdout, &out.stderr
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out
}

// configFixture 返回 internal/config/testdata 下的样例配置；go test 以包目录（仓库根）为工作目录。
func configFixture(name string) string {
	return filepath.Join("internal", "config", "testdata", name)
}
