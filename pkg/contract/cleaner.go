package contract

import (
	"context"

	"hltascleaner/pkg/cleaners"
	"hltascleaner/pkg/hltas"
)

// Cleaner: 对单个文档原地执行的清理 pass。
// 约束：
// - 同步执行，不起 goroutine；同一文档同一时刻只允许一个 Cleaner；
// - 报告索引语义见 cleaners.Report；
// - 失败时返回的错误需保留底层哨兵（errors.Is 可达）。
type Cleaner interface {
	Name() string
	Clean(ctx context.Context, doc *hltas.Document) (cleaners.Report, error)
}
