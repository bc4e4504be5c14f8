package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath("valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 3000 {
		t.Fatalf("ListenPort 应当被解析，得到 %d", cfg.Global.ListenPort)
	}
	if cfg.Global.ListenHost != "0.0.0.0" {
		t.Fatalf("ListenHost 应默认 0.0.0.0，得到 %s", cfg.Global.ListenHost)
	}
	if cfg.Upload.Limit != 10*MB {
		t.Fatalf("Upload.Limit 应解析为 10MB，得到 %d", cfg.Upload.Limit)
	}
	if !filepath.IsAbs(cfg.Upload.Storage) {
		t.Fatalf("Upload.Storage 应被解析为绝对路径: %s", cfg.Upload.Storage)
	}
	if cfg.Session.IdleTimeout.DurationValue() != 15*time.Minute {
		t.Fatalf("IdleTimeout 解析错误: %v", cfg.Session.IdleTimeout.DurationValue())
	}
	if cfg.Session.CookieName != "session_id" {
		t.Fatalf("CookieName 应填充默认值，得到 %s", cfg.Session.CookieName)
	}
	if cfg.Access.LoginPath != "/login" || cfg.Access.ReservedPrefix != "/ui" {
		t.Fatalf("Access 默认值缺失: %+v", cfg.Access)
	}
	if !cfg.Errors.AlwaysJSON() {
		t.Fatalf("ReportErrorsAs=json 应返回 AlwaysJSON")
	}
}

func TestLoadDecodesMixedAccessRules(t *testing.T) {
	cfg, err := Load(testConfigPath("valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}

	want := []AccessRule{
		{Kind: AccessRuleLiteral, Pattern: "/"},
		{Kind: AccessRuleLiteral, Pattern: "/login"},
		{Kind: AccessRuleLiteral, Pattern: "/logout"},
		{Kind: AccessRuleRegex, Pattern: "^/echo"},
		{Kind: AccessRuleRegex, Pattern: "^/-/"},
	}
	if len(cfg.Access.Public) != len(want) {
		t.Fatalf("规则数量不符: %+v", cfg.Access.Public)
	}
	for i, rule := range want {
		if cfg.Access.Public[i] != rule {
			t.Fatalf("规则 %d 不符: got %+v want %+v", i, cfg.Access.Public[i], rule)
		}
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	if _, err := Load(testConfigPath("missing.toml")); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRejectsUnknownErrorFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Errors.ReportErrorsAs = "xml"
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok {
		t.Fatalf("期望 FieldError，得到 %v", err)
	}
	if fieldErr.Field != "Errors.ReportErrorsAs" {
		t.Fatalf("字段路径错误: %s", fieldErr.Field)
	}
}

func TestValidateRejectsEmptyRule(t *testing.T) {
	cfg := validConfig()
	cfg.Access.Public = append(cfg.Access.Public, AccessRule{Kind: AccessRuleRegex, Pattern: " "})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("空规则应当报错")
	}
}

func TestParseByteSize(t *testing.T) {
	testCases := []struct {
		raw       string
		want      ByteSize
		shouldErr bool
	}{
		{"1024", 1024, false},
		{"10MB", 10 * MB, false},
		{"512kb", 512 * KB, false},
		{"1.5GB", ByteSize(1.5 * float64(GB)), false},
		{"20 B", 20, false},
		{"", 0, false},
		{"lots", 0, true},
		{"-1MB", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseByteSize(tc.raw)
			if tc.shouldErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseByteSize(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func TestByteSizeString(t *testing.T) {
	cases := map[ByteSize]string{
		10 * MB:  "10MB",
		512 * KB: "512KB",
		2 * GB:   "2GB",
		1500:     "1500B",
	}
	for size, want := range cases {
		if got := size.String(); got != want {
			t.Fatalf("ByteSize(%d).String() = %s, want %s", int64(size), got, want)
		}
	}
}

func TestListenAddr(t *testing.T) {
	g := GlobalConfig{ListenHost: "127.0.0.1", ListenPort: 3000}
	if addr := g.ListenAddr(); addr != "127.0.0.1:3000" {
		t.Fatalf("ListenAddr 错误: %s", addr)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenHost: "0.0.0.0",
			ListenPort: 3000,
			LogLevel:   "info",
			RoutesDir:  "./routes",
			BodyLimit:  MB,
		},
		Upload: UploadConfig{
			Storage: "./uploads",
			Limit:   10 * MB,
		},
		Session: SessionConfig{
			Enabled:     true,
			CookieName:  "session_id",
			IdleTimeout: Duration(30 * time.Minute),
		},
		Access: AccessConfig{
			Public:         []AccessRule{{Kind: AccessRuleLiteral, Pattern: "/login"}},
			ReservedPrefix: "/ui",
			LoginPath:      "/login",
		},
	}
}
