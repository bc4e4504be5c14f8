package upload

import (
	"path"
	"strings"
	"unicode"
)

const fallbackName = "upload"

// SanitizeFilename 只保留客户端文件名的最后一段，去掉路径分隔符、点段与控制字符。
// 清洗后为空时返回 "upload"。
func SanitizeFilename(raw string) string {
	name := strings.ReplaceAll(raw, "\\", "/")
	name = path.Base(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '/' || r == 0 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, ".")

	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}
