//go:build !windows

package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hltascleaner/pkg/contract"
)

func visit(t *testing.T, roots ...string) ([]string, error) {
	t.Helper()
	r, err := New(nil)
	require.NoError(t, err)
	var visited []string
	err = r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
		visited = append(visited, filepath.Base(string(id)))
		return rc.Close()
	})
	return visited, err
}

// TestWalkDirNonRegular 非常规文件被忽略
func TestWalkDirNonRegular(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, syscall.Mkfifo(filepath.Join(root, "fifo.hltas"), 0o644))
	visited, err := visit(t, root)
	require.NoError(t, err)
	assert.Empty(t, visited)
}

// TestIterateSymlink 指向常规文件的符号链接被读取
func TestIterateSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "t.hltas")
	require.NoError(t, os.WriteFile(target, []byte("ok"), 0o644))
	link := filepath.Join(dir, "l.hltas")
	require.NoError(t, os.Symlink(target, link))
	visited, err := visit(t, link)
	require.NoError(t, err)
	assert.Equal(t, []string{"l.hltas"}, visited)
}

// TestIterateSymlinkDir 符号链接指向目录时忽略
func TestIterateSymlinkDir(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	require.NoError(t, os.Mkdir(realDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "a.hltas"), []byte("x"), 0o644))
	link := filepath.Join(root, "ln")
	require.NoError(t, os.Symlink(realDir, link))
	visited, err := visit(t, link)
	require.NoError(t, err)
	assert.Empty(t, visited)
}

// TestWalkDirSymlinkDir 遍历目录时忽略指向目录的符号链接
func TestWalkDirSymlinkDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "ok.hltas"), []byte("o"), 0o644))
	require.NoError(t, os.Symlink(sub, filepath.Join(root, "sub_link")))
	visited, err := visit(t, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.hltas"}, visited)
}

// TestIterateSymlinkDangling 符号链接失效返回错误
func TestIterateSymlinkDangling(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(dir, "no"), link))
	_, err := visit(t, link)
	assert.Error(t, err)
}
