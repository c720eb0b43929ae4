package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"hltascleaner/pkg/contract"
)

// DefaultInclude: 目录扫描时默认收集的文件。
const DefaultInclude = "**/*.hltas"

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名完全匹配，忽略大小写）。
	// 仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Include: 目录扫描时的 doublestar 模式，相对于扫描根、使用 '/' 分隔。
	// 为空时取 DefaultInclude。单文件 root 总是被读取。
	Include []string `json:"include"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	fs      afero.Fs
	stdin   io.Reader
	bufSize int
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	include    []string
}

// New 创建基于本机文件系统的 Reader。
func New(opts *Options) (*FileSystem, error) {
	return NewWithFs(afero.NewOsFs(), opts)
}

// NewWithFs 使用给定的 afero.Fs 创建 Reader（测试可传入内存文件系统）。
func NewWithFs(fsys afero.Fs, opts *Options) (*FileSystem, error) {
	const defaultBuf = 64 * 1024
	r := &FileSystem{fs: fsys, stdin: os.Stdin, bufSize: defaultBuf, excludeDir: map[string]struct{}{}}
	if opts == nil {
		opts = &Options{}
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	for _, name := range opts.ExcludeDirNames {
		if name == "" {
			continue
		}
		r.excludeDir[strings.ToLower(name)] = struct{}{}
	}
	r.include = opts.Include
	if len(r.include) == 0 {
		r.include = []string{DefaultInclude}
	}
	for _, p := range r.include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("reader fs: invalid include pattern %q: %w", p, contract.ErrInvalidInput)
		}
	}
	return r, nil
}

// Iterate 遍历 roots，按稳定顺序对每个匹配的常规文件调用 yield。
// roots 为空或仅包含 "-" 时读取 STDIN，FileID 为 contract.Stdio。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.Stdio, newBufferedCloser(io.NopCloser(r.stdin), r.bufSize))
	}
	// 禁止与其他根混用 "-"
	for _, s := range roots {
		if s == "-" {
			return errors.New("stdin '-' cannot be mixed with other roots")
		}
	}

	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := r.lstat(root)
	if err != nil {
		return err
	}
	// 仅跟随到常规文件；目录符号链接不跟随（忽略）
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := r.fs.Stat(root)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			return nil
		}
		return r.open(root, yield)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, "", yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.open(root, yield)
}

// walkDir 递归扫描 root/rel：先子目录后文件，各自按字典序。
func (r *FileSystem) walkDir(ctx context.Context, root, rel string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(root, filepath.FromSlash(rel))
	// afero.ReadDir 已按名称排序
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, root, path.Join(rel, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Mode()&os.ModeSymlink != 0 {
			t, err := r.fs.Stat(p)
			if err != nil {
				return err
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Mode().IsRegular() {
			continue
		}
		if !r.included(path.Join(rel, e.Name())) {
			continue
		}
		if err := r.open(p, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) included(rel string) bool {
	for _, p := range r.include {
		// 模式已在构造时校验，Match 不会返回 ErrBadPattern
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (r *FileSystem) lstat(p string) (os.FileInfo, error) {
	if l, ok := r.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return r.fs.Stat(p)
}

func (r *FileSystem) open(p string, yield func(contract.FileID, io.ReadCloser) error) error {
	f, err := r.fs.Open(p)
	if err != nil {
		return err
	}
	brc := newBufferedCloser(f, r.bufSize)
	if err := yield(contract.NormalizeFileID(p), brc); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
