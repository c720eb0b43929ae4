package stdout

import (
	"context"
	"io"
	"os"
	"sync"

	"hltascleaner/pkg/contract"
)

// Options: 暂无可配置项；保留以便注册表统一严格解码。
type Options struct{}

// Stdout 将工件原样写到标准输出。多个工件按调用顺序整体输出，互不交错。
type Stdout struct {
	mu  sync.Mutex
	out io.Writer
}

// New 创建 STDOUT Writer。
func New(*Options) *Stdout { return &Stdout{out: os.Stdout} }

var _ contract.Writer = (*Stdout)(nil)

func (s *Stdout) Write(ctx context.Context, _ contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.Copy(s.out, r)
	return err
}
