package stdout

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	s := New(nil)
	s.out = &buf
	require.NoError(t, s.Write(context.Background(), "-", strings.NewReader("version 1\nframes\n")))
	assert.Equal(t, "version 1\nframes\n", buf.String())
}

// TestWriteNotInterleaved 并发写入时每个工件整体输出
func TestWriteNotInterleaved(t *testing.T) {
	var buf bytes.Buffer
	s := New(nil)
	s.out = &buf
	a := strings.Repeat("a", 4096)
	b := strings.Repeat("b", 4096)
	var wg sync.WaitGroup
	for _, body := range []string{a, b} {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			assert.NoError(t, s.Write(context.Background(), "x", strings.NewReader(body)))
		}(body)
	}
	wg.Wait()
	got := buf.String()
	assert.True(t, got == a+b || got == b+a)
}

func TestWriteCtxCancel(t *testing.T) {
	s := New(nil)
	s.out = &bytes.Buffer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, "x", strings.NewReader("x")), context.Canceled)
}
