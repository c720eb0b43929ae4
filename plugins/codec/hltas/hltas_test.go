package hltas

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doc "hltascleaner/pkg/hltas"
)

const script = `version 1
frames
// yes
----------|------|------|0.001|-|-|1
target_yaw velocity_lock
`

func TestDecodeEncode(t *testing.T) {
	d, err := NewDecoder(nil).Decode(context.Background(), "a.hltas", strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, d.Lines, 3)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(nil).Encode(context.Background(), &buf, d))
	assert.Equal(t, script, buf.String())
}

func TestEncodeCRLF(t *testing.T) {
	d, err := doc.ParseString(script)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&EncoderOptions{CRLF: true}).Encode(context.Background(), &buf, d))
	assert.Equal(t, strings.ReplaceAll(script, "\n", "\r\n"), buf.String())

	// CRLF 输出可被再次解析
	again, err := doc.ParseString(buf.String())
	require.NoError(t, err)
	assert.Equal(t, d.String(), again.String())
}

func TestDecodeSyntaxError(t *testing.T) {
	_, err := NewDecoder(nil).Decode(context.Background(), "bad.hltas", strings.NewReader("version 9\nframes\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, doc.ErrSyntax))
	assert.Contains(t, err.Error(), "bad.hltas")
}

func TestDecodeTooLarge(t *testing.T) {
	_, err := NewDecoder(&DecoderOptions{MaxBytes: 8}).Decode(context.Background(), "big.hltas", strings.NewReader(script))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder(nil).Decode(ctx, "a", strings.NewReader(script))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, NewEncoder(nil).Encode(ctx, &bytes.Buffer{}, &doc.Document{}), context.Canceled)
}
