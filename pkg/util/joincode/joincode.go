// Package joincode 提供私密房间加入码的生成与规范化
// 设计约定：加入码与房间 id 相同，规范形式为 32 位小写、无分隔符
package joincode

import (
	"strings"

	"github.com/google/uuid"
)

// Generate 生成一个新的规范加入码（同时作为房间 id）
// 使用 UUIDv4 去掉连字符的十六进制形式，天然小写且全局唯一
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Normalize 将用户输入规范化后用于查找
// 用户粘贴的加入码可能带有多余空白、连字符或大写字母，
// 统一处理后再查库，保证 "ABC-123" 与 "abc123" 解析到同一房间
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToLower(s)
}
