package contract

import (
	"context"
	"io"

	"hltascleaner/pkg/hltas"
)

// Decoder: 将脚本字节解析为文档。语法错误需可被 errors.Is(err, hltas.ErrSyntax) 识别。
type Decoder interface {
	Decode(ctx context.Context, id FileID, r io.Reader) (*hltas.Document, error)
}

// Encoder: 将文档渲染回脚本文本。对同一文档的输出必须确定。
type Encoder interface {
	Encode(ctx context.Context, w io.Writer, doc *hltas.Document) error
}
