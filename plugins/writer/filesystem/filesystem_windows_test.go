//go:build windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hltascleaner/pkg/contract"
)

// TestMapPathInvalidWindows Windows-specific path validation
func TestMapPathInvalidWindows(t *testing.T) {
	w, err := New(&Options{OutputDir: t.TempDir(), Flat: boolPtr(false)})
	require.NoError(t, err)
	for _, id := range []string{"C:\\abs", "..", "."} {
		_, err := w.mapPath(contract.ArtifactID(id))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, "id %s", id)
	}
}
