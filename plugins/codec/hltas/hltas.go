package hltas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"hltascleaner/pkg/contract"
	doc "hltascleaner/pkg/hltas"
)

// DefaultMaxBytes: 单个脚本的默认读取上限。
const DefaultMaxBytes = 16 << 20

// ErrTooLarge: 脚本超过 MaxBytes。
var ErrTooLarge = errors.New("script too large")

// DecoderOptions: 解码选项。
type DecoderOptions struct {
	// MaxBytes: 单个脚本最大字节数；<=0 使用 DefaultMaxBytes。
	MaxBytes int64 `json:"max_bytes"`
}

// EncoderOptions: 编码选项。
type EncoderOptions struct {
	// CRLF: 以 \r\n 作为行尾输出（默认 \n）。
	CRLF bool `json:"crlf"`
}

// Decoder 基于 pkg/hltas 的文本解析。
type Decoder struct {
	max int64
}

// NewDecoder 创建解码器。
func NewDecoder(opts *DecoderOptions) *Decoder {
	d := &Decoder{max: DefaultMaxBytes}
	if opts != nil && opts.MaxBytes > 0 {
		d.max = opts.MaxBytes
	}
	return d
}

var _ contract.Decoder = (*Decoder)(nil)

// Decode 读取并解析一个脚本；语法错误保留 hltas.ErrSyntax 哨兵并附带 FileID。
func (d *Decoder) Decode(ctx context.Context, id contract.FileID, r io.Reader) (*doc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(io.LimitReader(r, d.max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	if int64(len(b)) > d.max {
		return nil, fmt.Errorf("read %s: %w: %w (limit %d bytes)", id, ErrTooLarge, contract.ErrInvalidInput, d.max)
	}
	out, err := doc.ParseString(string(b))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", id, err)
	}
	return out, nil
}

// Encoder 基于 pkg/hltas 的文本渲染。
type Encoder struct {
	crlf bool
}

// NewEncoder 创建编码器。
func NewEncoder(opts *EncoderOptions) *Encoder {
	return &Encoder{crlf: opts != nil && opts.CRLF}
}

var _ contract.Encoder = (*Encoder)(nil)

// Encode 将文档写入 w。
func (e *Encoder) Encode(ctx context.Context, w io.Writer, d *doc.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("encode: %w: nil document", contract.ErrInvalidInput)
	}
	bw := bufio.NewWriter(w)
	var dst io.Writer = bw
	if e.crlf {
		dst = &crlfWriter{w: bw}
	}
	if err := doc.Write(dst, d); err != nil {
		return err
	}
	return bw.Flush()
}

// crlfWriter 将 \n 展开为 \r\n。输入来自 hltas.Write，不含 \r。
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	start := 0
	for i, b := range p {
		if b != '\n' {
			continue
		}
		if _, err := c.w.Write(p[start:i]); err != nil {
			return start, err
		}
		if _, err := io.WriteString(c.w, "\r\n"); err != nil {
			return i, err
		}
		start = i + 1
	}
	if _, err := c.w.Write(p[start:]); err != nil {
		return start, err
	}
	return len(p), nil
}
