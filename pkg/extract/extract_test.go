package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/strata-dev/installer/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "skeleton.zip")

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)

	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return path
}

func writeTgz(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "skeleton.tgz")

	f, err := os.Create(path)
	require.NoError(t, err)

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	for name, content := range files {
		err = tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		})
		require.NoError(t, err)

		_, err = tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	return path
}

func assertFile(t *testing.T, path, content string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, content, string(data))
}

func TestExtract(t *testing.T) {
	var x Extractor

	t.Run("strips the wrapping root from a zip", func(t *testing.T) {
		tmp := t.TempDir()

		path := writeZip(t, tmp, map[string]string{
			"Strata/strata.json":     `{"name": "strata/standard"}`,
			"Strata/web/index.go":    "package web",
			"Strata/var/cache/.keep": "",
		})

		target := filepath.Join(tmp, "proj")

		require.NoError(t, x.Extract(context.Background(), path, "zip", target))

		assertFile(t, filepath.Join(target, "strata.json"), `{"name": "strata/standard"}`)
		assertFile(t, filepath.Join(target, "web", "index.go"), "package web")

		_, err := os.Stat(filepath.Join(target, "Strata"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("strips the wrapping root from a tgz", func(t *testing.T) {
		tmp := t.TempDir()

		path := writeTgz(t, tmp, map[string]string{
			"Strata/strata.json": `{}`,
			"Strata/app/run":     "#!/bin/sh",
		})

		target := filepath.Join(tmp, "proj")

		require.NoError(t, x.Extract(context.Background(), path, "tgz", target))

		assertFile(t, filepath.Join(target, "strata.json"), `{}`)
		assertFile(t, filepath.Join(target, "app", "run"), "#!/bin/sh")
	})

	t.Run("flags unreadable archives as corrupt", func(t *testing.T) {
		tmp := t.TempDir()

		path := filepath.Join(tmp, "bad.tgz")
		require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0644))

		err := x.Extract(context.Background(), path, "tgz", filepath.Join(tmp, "proj"))

		var ce *CorruptArchiveError
		require.ErrorAs(t, err, &ce)

		require.NoError(t, os.WriteFile(path, []byte("not a zip either"), 0644))

		err = x.Extract(context.Background(), path, "zip", filepath.Join(tmp, "proj2"))
		require.ErrorAs(t, err, &ce)
	})

	t.Run("flags archives with zero entries", func(t *testing.T) {
		tmp := t.TempDir()

		path := writeZip(t, tmp, nil)

		err := x.Extract(context.Background(), path, "zip", filepath.Join(tmp, "proj"))

		var ee *EmptyArchiveError
		require.ErrorAs(t, err, &ee)
	})

	t.Run("flags an unwritable destination", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("root ignores directory permissions")
		}

		tmp := t.TempDir()

		path := writeZip(t, tmp, map[string]string{"Strata/file": "x"})

		locked := filepath.Join(tmp, "locked")
		require.NoError(t, os.MkdirAll(locked, 0555))

		err := x.Extract(context.Background(), path, "zip", filepath.Join(locked, "proj"))

		var we *NotWritableError
		require.ErrorAs(t, err, &we)
	})

	t.Run("draws entry progress when a writer is attached", func(t *testing.T) {
		tmp := t.TempDir()

		path := writeZip(t, tmp, map[string]string{
			"Strata/a": "1",
			"Strata/b": "2",
			"Strata/c": "3",
		})

		var out bytes.Buffer

		ctx := progress.Open(context.Background(), &out)

		require.NoError(t, x.Extract(ctx, path, "zip", filepath.Join(tmp, "proj")))
		assert.NotZero(t, out.Len())
	})

	t.Run("rejects entries escaping the target", func(t *testing.T) {
		tmp := t.TempDir()

		path := writeTgz(t, tmp, map[string]string{
			"Strata/../../evil": "x",
		})

		err := x.Extract(context.Background(), path, "tgz", filepath.Join(tmp, "proj"))
		require.Error(t, err)

		_, statErr := os.Stat(filepath.Join(tmp, "evil"))
		assert.True(t, os.IsNotExist(statErr))
	})
}
