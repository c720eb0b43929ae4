package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hltascleaner/internal/diag"
	"hltascleaner/pkg/cleaners"
	"hltascleaner/pkg/contract"
	"hltascleaner/pkg/hltas"
	"hltascleaner/plugins/cleaner/builtin"
	codec "hltascleaner/plugins/codec/hltas"
	rfs "hltascleaner/plugins/reader/filesystem"
)

const dupScript = `version 1
frames
----------|f-----|------|0.001|-|-|1
----------|f-----|------|0.001|-|-|2
// keep
`

const cleanScript = `version 1
frames
----------|f-----|------|0.001|-|-|3
`

const overflowScript = `version 1
frames
----------|------|------|0.001|-|-|4294967295
----------|------|------|0.001|-|-|1
`

// memWriter 在内存中收集工件（并发安全）。
type memWriter struct {
	mu  sync.Mutex
	out map[contract.ArtifactID]string
}

func (w *memWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		w.out = map[contract.ArtifactID]string{}
	}
	w.out[id] = string(b)
	return nil
}

type failWriter struct{}

func (failWriter) Write(context.Context, contract.ArtifactID, io.Reader) error {
	return errors.New("disk full")
}

func setup(t *testing.T, files map[string]string, cls ...contract.Cleaner) (Components, *memWriter) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fsys, "/in/"+name, []byte(data), 0o644))
	}
	r, err := rfs.NewWithFs(fsys, nil)
	require.NoError(t, err)
	w := &memWriter{}
	return Components{
		Reader:   r,
		Decoder:  codec.NewDecoder(nil),
		Cleaners: cls,
		Encoder:  codec.NewEncoder(nil),
		Writer:   w,
	}, w
}

// 合并并写出全部文档
func TestRunMergesAndWrites(t *testing.T) {
	comp, w := setup(t, map[string]string{"a.hltas": dupScript, "b.hltas": cleanScript}, builtin.NewMerge())
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 2, FilesChanged: 1, LinesChanged: 1, LinesRemoved: 1}, sum)
	require.Len(t, w.out, 2)
	assert.Equal(t, `version 1
frames
----------|f-----|------|0.001|-|-|3
// keep
`, w.out["/in/a.hltas"])
	assert.Equal(t, cleanScript, w.out["/in/b.hltas"])
}

// pass 按配置顺序执行：先去注释再合并
func TestRunPassOrder(t *testing.T) {
	in := `version 1
frames
----------|------|------|0.001|-|-|1
// split
----------|------|------|0.001|-|-|1
`
	comp, w := setup(t, map[string]string{"a.hltas": in}, builtin.NewRemoveComments(), builtin.NewMerge())
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.LinesRemoved)
	assert.Equal(t, "version 1\nframes\n----------|------|------|0.001|-|-|2\n", w.out["/in/a.hltas"])

	// 反序时注释阻断相邻，不合并
	comp, w = setup(t, map[string]string{"a.hltas": in}, builtin.NewMerge(), builtin.NewRemoveComments())
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(w.out["/in/a.hltas"], "|1\n"))
}

func TestRunSkipUnchanged(t *testing.T) {
	comp, w := setup(t, map[string]string{"a.hltas": dupScript, "b.hltas": cleanScript}, builtin.NewMerge())
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1, SkipUnchanged: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesChanged)
	assert.Len(t, w.out, 1)
	assert.Contains(t, w.out, contract.ArtifactID("/in/a.hltas"))
}

// 仅写法不同（0.0010、多余空行）而无 pass 改动的文件不算改动
func TestRunSpellingOnlyUnchanged(t *testing.T) {
	in := "version 1\nframes\n\n----------|f-----|------|0.0010|-|-|3\n"
	comp, w := setup(t, map[string]string{"a.hltas": in}, builtin.NewMerge())
	comp.Writer = nil
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1, Check: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Zero(t, sum.FilesChanged)
	assert.Empty(t, w.out)

	// 输出目录模式下仍以规范写法写出
	comp, w = setup(t, map[string]string{"a.hltas": in}, builtin.NewMerge())
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, cleanScript, w.out["/in/a.hltas"])
}

// Check 模式不写出，Writer 可为 nil
func TestRunCheckMode(t *testing.T) {
	comp, _ := setup(t, map[string]string{"a.hltas": dupScript}, builtin.NewMerge())
	comp.Writer = nil
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1, Check: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesChanged)
}

// 多文件并发
func TestRunConcurrent(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("f%02d.hltas", i)] = dupScript
	}
	comp, w := setup(t, files, builtin.NewMerge(), builtin.NewNormalizeAngles())
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 20, FilesChanged: 20, LinesChanged: 20, LinesRemoved: 20}, sum)
	assert.Len(t, w.out, 20)
}

func TestRunOverflowError(t *testing.T) {
	comp, w := setup(t, map[string]string{"a.hltas": overflowScript}, builtin.NewMerge())
	_, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cleaners.ErrFrameCountOverflow)
	var oe *cleaners.OverflowError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.Index)
	assert.Equal(t, diag.CodeOverflow, diag.Classify(err))
	assert.Empty(t, w.out)
}

func TestRunParseError(t *testing.T) {
	comp, _ := setup(t, map[string]string{"a.hltas": "version 1\nframes\nnot|a|bulk\n"}, builtin.NewMerge())
	_, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	assert.ErrorIs(t, err, hltas.ErrSyntax)
	assert.Equal(t, diag.CodeParse, diag.Classify(err))
}

func TestRunWriterError(t *testing.T) {
	comp, _ := setup(t, map[string]string{"a.hltas": dupScript}, builtin.NewMerge())
	comp.Writer = failWriter{}
	_, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunCanceled(t *testing.T) {
	comp, _ := setup(t, map[string]string{"a.hltas": dupScript}, builtin.NewMerge())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSanity(t *testing.T) {
	_, err := Run(context.Background(), Components{}, Settings{Inputs: []string{"x"}}, nil)
	assert.Error(t, err)

	comp, _ := setup(t, nil)
	comp.Writer = nil
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{"/in"}}, nil)
	assert.ErrorContains(t, err, "missing writer")

	comp, _ = setup(t, nil)
	_, err = Run(context.Background(), comp, Settings{}, nil)
	assert.ErrorContains(t, err, "empty inputs")

	comp, _ = setup(t, nil, nil)
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{"/in"}}, nil)
	assert.ErrorContains(t, err, "nil cleaner")
}

// 日志记录 pass 报告，终端输出文件状态
func TestRunLogsAndTerminal(t *testing.T) {
	var logBuf bytes.Buffer
	logger := diag.NewLoggerTo(&logBuf, "corr", "debug")
	var termBuf strings.Builder
	diag.SetTerminal(diag.NewTerminal(&termBuf, true))
	t.Cleanup(func() { diag.SetTerminal(nil) })

	comp, _ := setup(t, map[string]string{"a.hltas": dupScript, "b.hltas": overflowScript}, builtin.NewMerge())
	_, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, logger)
	require.Error(t, err)

	logs := logBuf.String()
	assert.Contains(t, logs, `"lines_removed":"[1]"`)
	assert.Contains(t, logs, `"pass":"merge_frame_bulks"`)
	assert.Contains(t, logs, `"code":"overflow"`)

	out := termBuf.String()
	assert.Contains(t, out, "[run] 并发=1 | 文件=2 | pass=merge_frame_bulks")
	assert.Contains(t, out, "[changed] a.hltas | 改写 1 行 | 删除 1 行")
	assert.Contains(t, out, "[fail] b.hltas")
}

// 没有匹配的输入文件：成功结束并记录 warn
func TestRunNoFiles(t *testing.T) {
	var logBuf bytes.Buffer
	logger := diag.NewLoggerTo(&logBuf, "corr", "info")
	comp, w := setup(t, map[string]string{"notes.txt": "x"}, builtin.NewMerge())
	sum, err := Run(context.Background(), comp, Settings{Inputs: []string{"/in"}, Concurrency: 1}, logger)
	require.NoError(t, err)
	assert.Zero(t, sum.Files)
	assert.Empty(t, w.out)
	assert.Contains(t, logBuf.String(), `"msg":"no input files matched"`)
	assert.Contains(t, logBuf.String(), `"roots":"/in"`)
}
