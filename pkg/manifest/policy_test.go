package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	t.Run("default table matches the published exclusions", func(t *testing.T) {
		p := DefaultPolicy()

		for _, b := range []string{"2.0", "2.1", "2.2", "2.4"} {
			assert.True(t, p.BranchUnmaintained(b), b)
		}

		assert.False(t, p.BranchUnmaintained("2.3"))

		assert.True(t, p.BelowFloor("2.3", 20))
		assert.False(t, p.BelowFloor("2.3", 21))
		assert.True(t, p.BelowFloor("2.5", 5))
		assert.False(t, p.BelowFloor("2.5", 6))
		assert.False(t, p.BelowFloor("3.4", 0))
	})

	t.Run("loads a replacement table from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.json")

		err := os.WriteFile(path, []byte(`{
			"unmaintained_branches": ["1.0"],
			"patch_floors": {"1.1": 4}
		}`), 0644)
		require.NoError(t, err)

		p, err := LoadPolicy(path)
		require.NoError(t, err)

		assert.True(t, p.BranchUnmaintained("1.0"))
		assert.False(t, p.BranchUnmaintained("2.0"))
		assert.True(t, p.BelowFloor("1.1", 3))
	})

	t.Run("errors on a missing file", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}
