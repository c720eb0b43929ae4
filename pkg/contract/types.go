package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
// 特殊值 "-" 表示 STDIN/STDOUT。
type FileID string

// Stdio: 标准输入/输出对应的 FileID。
const Stdio FileID = "-"

// Meta: 可选的轻量元信息；核心流程不读取其键值。
type Meta map[string]string

// Source: 读取阶段产出的单个脚本。
// 约束：
// - Data 为原始字节，不做换行归一；
// - 同一次运行内 FileID 唯一。
type Source struct {
	FileID FileID
	Data   []byte
	Meta   Meta // 可为 nil
}
