package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"hltascleaner/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录。InPlace 为 false 时必需。
	OutputDir string `json:"output_dir"`
	// InPlace: 直接覆盖源文件（FileID 即目标路径），忽略 OutputDir/Flat。
	InPlace bool `json:"in_place"`
	// OutputFile: 单文件输出路径，忽略 OutputDir/Flat；只接受一个输入文档。
	OutputFile string `json:"output_file,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否扁平化输出（仅保留文件名，不保留目录层级）。
	// 默认 true；当为 nil 时采用默认 true；显式 false 覆盖。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现/平台默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

// FS: 基于 afero.Fs 的 Writer。
type FS struct {
	fs      afero.Fs
	root    string
	inPlace bool
	file    string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int

	mu      sync.Mutex
	claimed contract.ArtifactID
}

// New 创建基于本机文件系统的 Writer。
func New(opts *Options) (*FS, error) {
	return NewWithFs(afero.NewOsFs(), opts)
}

// NewWithFs 使用给定的 afero.Fs 创建 Writer。
func NewWithFs(fsys afero.Fs, opts *Options) (*FS, error) {
	if opts == nil {
		return nil, fmt.Errorf("writer fs: %w: missing options", contract.ErrInvalidInput)
	}
	file := strings.TrimSpace(opts.OutputFile)
	if opts.InPlace && file != "" {
		return nil, fmt.Errorf("writer fs: %w: in_place conflicts with output_file", contract.ErrInvalidInput)
	}
	if !opts.InPlace && file == "" && strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("writer fs: %w: output_dir required unless in_place or output_file", contract.ErrInvalidInput)
	}
	w := &FS{
		fs:      fsys,
		root:    opts.OutputDir,
		inPlace: opts.InPlace,
		file:    file,
		atomic:  true,
		flat:    true,
		permF:   0o644,
		permD:   0o755,
		bufSize: 64 * 1024,
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入到基于 id 映射的目标路径。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := w.fs.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}

	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeOverwrite(ctx, dest, r)
}

// mapPath: Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	// 单文件输出同样接受 STDIN 文档
	if w.file != "" {
		return w.claim(id)
	}
	if id == contract.Stdio {
		return "", contract.ErrPathInvalid
	}
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if w.inPlace {
		if rel == "." || rel == "" {
			return "", contract.ErrPathInvalid
		}
		return rel, nil
	}
	// Flat 优先：若扁平化，则仅保留文件名并在此后校验名称合法
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == "" || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
		return filepath.Join(w.root, rel), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	if filepath.IsAbs(rel) {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

// claim: 单文件输出只属于第一个写入的文档；同一文档可重复写。
func (w *FS) claim(id contract.ArtifactID) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.claimed != "" && w.claimed != id {
		return "", fmt.Errorf("writer fs: %w: output_file accepts a single input, got %s after %s", contract.ErrInvalidInput, id, w.claimed)
	}
	w.claimed = id
	return w.file, nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := w.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := afero.TempFile(w.fs, dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpPath)
		return err
	}
	// 目标权限：尽量与期望一致
	_ = w.fs.Chmod(tmpPath, w.permF)

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpPath)
		return err
	}
	// os.Rename 在 Windows 上同样以 MOVEFILE_REPLACE_EXISTING 覆盖目标
	if err := w.fs.Rename(tmpPath, dest); err != nil {
		_ = w.fs.Remove(tmpPath)
		return err
	}
	// 最佳努力：在部分平台同步父目录，提升崩溃安全性
	if _, ok := w.fs.(*afero.OsFs); ok {
		_ = syncDir(dir)
	}
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
