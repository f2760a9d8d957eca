package require

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReqs(t *testing.T, dir, rel, content string) {
	t.Helper()

	path := filepath.Join(dir, rel)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCheck(t *testing.T) {
	var c Checker

	t.Run("no requirements file means nothing to check", func(t *testing.T) {
		unmet, err := c.Check(t.TempDir())
		require.NoError(t, err)

		assert.Empty(t, unmet)
	})

	t.Run("reports fulfilled requirements as healthy", func(t *testing.T) {
		dir := t.TempDir()

		require.NoError(t, os.MkdirAll(filepath.Join(dir, "var/cache"), 0755))

		writeReqs(t, dir, "var/requirements.json", `{
			"requirements": [
				{"check": "dir-writable", "path": "var/cache",
				 "test": "var/cache must be writable",
				 "help": "Change the permissions of var/cache so the runtime can write to it."}
			]
		}`)

		unmet, err := c.Check(dir)
		require.NoError(t, err)

		assert.Empty(t, unmet)
	})

	t.Run("collects wrapped remediation text for failures", func(t *testing.T) {
		dir := t.TempDir()

		writeReqs(t, dir, "var/requirements.json", `{
			"requirements": [
				{"check": "file-exists", "path": "app/bootstrap.cache",
				 "test": "the bootstrap cache must be generated",
				 "help": "Run the cache warmup command from the project directory before serving any traffic, otherwise the first request pays the full compilation cost."}
			]
		}`)

		unmet, err := c.Check(dir)
		require.NoError(t, err)

		require.Len(t, unmet, 1)
		assert.Contains(t, unmet[0], "bootstrap cache must be generated")

		for _, line := range splitLines(unmet[0]) {
			assert.LessOrEqual(t, len(line), wrapColumn)
		}
	})

	t.Run("falls back to the legacy location", func(t *testing.T) {
		dir := t.TempDir()

		writeReqs(t, dir, "app/config/requirements.json", `{
			"requirements": [
				{"check": "env-set", "name": "STRATA_TEST_UNSET_VAR",
				 "test": "STRATA_TEST_UNSET_VAR must be set", "help": "Export it."}
			]
		}`)

		unmet, err := c.Check(dir)
		require.NoError(t, err)

		assert.Len(t, unmet, 1)
	})

	t.Run("treats unknown check kinds as unmet, not fatal", func(t *testing.T) {
		dir := t.TempDir()

		writeReqs(t, dir, "var/requirements.json", `{
			"requirements": [
				{"check": "quantum-entanglement", "test": "spooky", "help": "n/a"}
			]
		}`)

		unmet, err := c.Check(dir)
		require.NoError(t, err)

		require.Len(t, unmet, 1)
		assert.Contains(t, unmet[0], "unknown check")
	})

	t.Run("errors on a malformed file", func(t *testing.T) {
		dir := t.TempDir()

		writeReqs(t, dir, "var/requirements.json", `{broken`)

		_, err := c.Check(dir)
		require.Error(t, err)
	})

	t.Run("passes sane builtin checks", func(t *testing.T) {
		dir := t.TempDir()

		writeReqs(t, dir, "var/requirements.json", `{
			"requirements": [
				{"check": "min-memory-mb", "min_mb": 1, "test": "at least 1MB of memory", "help": "Add memory."},
				{"check": "command-exists", "name": "sh", "test": "a shell must be present", "help": "Install a shell."}
			]
		}`)

		unmet, err := c.Check(dir)
		require.NoError(t, err)

		assert.Empty(t, unmet)
	})
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}

	return append(lines, s[start:])
}
