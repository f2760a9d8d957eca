package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	zipBody := strings.Repeat("z", 4096)
	tgzBody := strings.Repeat("t", 512)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Strata_Standard_3.4.1.zip":
			w.Write([]byte(zipBody))
		case "/Strata_Standard_3.4.1.tgz":
			w.Write([]byte(tgzBody))
		case "/Strata_Standard_2.3.21.zip":
			w.Write([]byte(zipBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var f Fetcher

	candidates := func(version string) []Candidate {
		return []Candidate{
			{Format: "zip", URL: srv.URL + "/Strata_Standard_" + version + ".zip"},
			{Format: "tgz", URL: srv.URL + "/Strata_Standard_" + version + ".tgz"},
		}
	}

	t.Run("downloads the smallest probed format", func(t *testing.T) {
		parent := t.TempDir()

		ar, err := f.Fetch(context.Background(), "3.4.1", candidates("3.4.1"), parent)
		require.NoError(t, err)

		defer os.RemoveAll(ar.StagingDir)

		assert.Equal(t, "tgz", ar.Format)
		assert.Equal(t, int64(len(tgzBody)), ar.Size)

		assert.True(t, strings.HasPrefix(filepath.Base(ar.StagingDir), ".strata-"))
		assert.Equal(t, parent, filepath.Dir(ar.StagingDir))

		data, err := os.ReadFile(ar.Path)
		require.NoError(t, err)
		assert.Equal(t, tgzBody, string(data))
	})

	t.Run("falls back to the only resolvable format", func(t *testing.T) {
		parent := t.TempDir()

		ar, err := f.Fetch(context.Background(), "2.3.21", candidates("2.3.21"), parent)
		require.NoError(t, err)

		defer os.RemoveAll(ar.StagingDir)

		assert.Equal(t, "zip", ar.Format)
	})

	t.Run("maps 404 on every candidate to a not-found failure", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "9.9.9", candidates("9.9.9"), t.TempDir())

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "9.9.9", nf.Version)
		assert.Contains(t, err.Error(), `"latest"`)
	})

	t.Run("reports an unreachable server as no archive available", func(t *testing.T) {
		dead := []Candidate{
			{Format: "zip", URL: "http://127.0.0.1:1/archive.zip"},
		}

		_, err := f.Fetch(context.Background(), "3.4.1", dead, t.TempDir())

		var na *NoArchiveError
		require.ErrorAs(t, err, &na)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.Fetch(ctx, "3.4.1", candidates("3.4.1"), t.TempDir())
		require.Error(t, err)
	})
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/present" {
			w.Header().Set("Content-Length", "1234")
			return
		}

		http.NotFound(w, r)
	}))
	defer srv.Close()

	var f Fetcher

	size, ok, err := f.Probe(context.Background(), srv.URL+"/present")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1234), size)

	_, _, err = f.Probe(context.Background(), srv.URL+"/absent")
	require.Error(t, err)
}
