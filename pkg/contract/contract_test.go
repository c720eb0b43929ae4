package contract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"本地分隔符", filepath.Join("a", "b", "c"), "a/b/c"},
		{"相对回退", "./x/../y", "y"},
		{"空串", "", "."},
		{"Windows路径", "C:\\TAS\\route\\bhop.hltas", "C:/TAS/route/bhop.hltas"},
		{"清理多余斜杠", "path//to///run.hltas", "path/to/run.hltas"},
		{"清理当前目录", "path/./to/./run.hltas", "path/to/run.hltas"},
		{"处理父目录", "path/to/../from/run.hltas", "path/from/run.hltas"},
		{"混合分隔符", "C:\\Users/test\\tas/run.hltas", "C:/Users/test/tas/run.hltas"},
		{"中文路径", "脚本\\第一章/起跳.hltas", "脚本/第一章/起跳.hltas"},
		{"仅分隔符", "\\\\\\///", "/"},
		{"复杂父目录", "a\\b\\c\\..\\..\\..\\..\\d", "../d"},
		{"标准输入", "-", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, FileID(tt.expected), NormalizeFileID(tt.input))
		})
	}
}

// BenchmarkNormalizeFileID 性能基准测试
func BenchmarkNormalizeFileID(b *testing.B) {
	paths := []string{
		"C:\\Users\\test\\tas\\run.hltas",
		"routes/c1a0/../../c1a1/run.hltas",
		"path//to///many////slashes/run.hltas",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			NormalizeFileID(p)
		}
	}
}
