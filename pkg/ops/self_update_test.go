package ops

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strata-dev/installer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func updateServer(t *testing.T, latest, binary string) *config.Config {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/installer/LATEST":
			w.Write([]byte(latest + "\n"))
		case strings.HasPrefix(r.URL.Path, "/installer/strata_"+latest+"_"):
			w.Write([]byte(binary))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return &config.Config{
		MirrorURL:   srv.URL,
		ManifestURL: srv.URL + "/manifest.json",
	}
}

func TestSelfUpdate(t *testing.T) {
	t.Run("replaces the managed binary with the newest build", func(t *testing.T) {
		dir := t.TempDir()
		exe := filepath.Join(dir, "strata")

		require.NoError(t, os.WriteFile(exe, []byte("old build"), 0755))

		var out bytes.Buffer

		op := &SelfUpdate{
			Config:         updateServer(t, "2.0.0", "new build bytes"),
			Output:         &out,
			CurrentVersion: "1.5.0",
			ExePath:        exe,
		}

		require.NoError(t, op.Update(context.Background()))

		data, err := os.ReadFile(exe)
		require.NoError(t, err)
		assert.Equal(t, "new build bytes", string(data))

		fi, err := os.Stat(exe)
		require.NoError(t, err)
		assert.NotZero(t, fi.Mode()&0111)

		// backup and staging dir are gone
		_, err = os.Stat(exe + ".bak")
		assert.True(t, os.IsNotExist(err))
		assert.Empty(t, hiddenDirs(t, dir))

		assert.Contains(t, out.String(), "Updated strata 1.5.0 -> 2.0.0")
	})

	t.Run("does nothing when already on the newest build", func(t *testing.T) {
		dir := t.TempDir()
		exe := filepath.Join(dir, "strata")

		require.NoError(t, os.WriteFile(exe, []byte("current build"), 0755))

		var out bytes.Buffer

		op := &SelfUpdate{
			Config:         updateServer(t, "1.5.0", "should never be fetched"),
			Output:         &out,
			CurrentVersion: "1.5.0",
			ExePath:        exe,
		}

		require.NoError(t, op.Update(context.Background()))

		data, err := os.ReadFile(exe)
		require.NoError(t, err)
		assert.Equal(t, "current build", string(data))

		assert.Contains(t, out.String(), "already the newest build")
	})

	t.Run("force reinstalls the current version", func(t *testing.T) {
		dir := t.TempDir()
		exe := filepath.Join(dir, "strata")

		require.NoError(t, os.WriteFile(exe, []byte("current build"), 0755))

		op := &SelfUpdate{
			Config:         updateServer(t, "1.5.0", "rebuilt bytes"),
			Output:         &bytes.Buffer{},
			CurrentVersion: "1.5.0",
			Force:          true,
			ExePath:        exe,
		}

		require.NoError(t, op.Update(context.Background()))

		data, err := os.ReadFile(exe)
		require.NoError(t, err)
		assert.Equal(t, "rebuilt bytes", string(data))
	})

	t.Run("fails cleanly when the channel is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)

		op := &SelfUpdate{
			Config:         &config.Config{MirrorURL: srv.URL},
			Output:         &bytes.Buffer{},
			CurrentVersion: "1.5.0",
		}

		err := op.Update(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "update channel")
	})
}

func TestSwapBinary(t *testing.T) {
	t.Run("installs the new build and drops the backup", func(t *testing.T) {
		dir := t.TempDir()

		exe := filepath.Join(dir, "strata")
		downloaded := filepath.Join(dir, "archive.bin")

		require.NoError(t, os.WriteFile(exe, []byte("old"), 0755))
		require.NoError(t, os.WriteFile(downloaded, []byte("new"), 0755))

		require.NoError(t, swapBinary(exe, downloaded))

		data, err := os.ReadFile(exe)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))

		_, err = os.Stat(exe + ".bak")
		assert.True(t, os.IsNotExist(err))

		_, err = os.Stat(downloaded)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("restores the backup when the install fails", func(t *testing.T) {
		dir := t.TempDir()

		exe := filepath.Join(dir, "strata")

		require.NoError(t, os.WriteFile(exe, []byte("old"), 0755))

		// downloaded build is missing, so the install rename must fail
		err := swapBinary(exe, filepath.Join(dir, "missing.bin"))
		require.Error(t, err)

		data, err := os.ReadFile(exe)
		require.NoError(t, err)
		assert.Equal(t, "old", string(data))

		_, err = os.Stat(exe + ".bak")
		assert.True(t, os.IsNotExist(err))
	})
}
