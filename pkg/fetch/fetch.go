package fetch

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/strata-dev/installer/pkg/cleanhttp"
	"github.com/strata-dev/installer/pkg/progress"
)

// NoArchiveError means no candidate format could be probed at all.
type NoArchiveError struct {
	Version string
}

func (e *NoArchiveError) Error() string {
	return fmt.Sprintf(
		"no downloadable archive is available for version %s: check your network and proxy settings, then retry",
		e.Version,
	)
}

// NotFoundError maps the server's 403/404 answers, which in practice mean
// the version was never published or has been pulled.
type NotFoundError struct {
	Version string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(
		"the download server has no archive for version %s: retry with \"latest\" to install the newest stable release",
		e.Version,
	)
}

// DownloadError wraps any other transfer failure.
type DownloadError struct {
	Version string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading version %s failed: %s", e.Version, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Candidate is one archive format the server may carry for a version.
type Candidate struct {
	Format string
	URL    string
}

// Archive is the downloaded artifact handed to the extractor. StagingDir
// is the hidden directory holding Path; the pipeline removes it on every
// exit path.
type Archive struct {
	Path       string
	Format     string
	Size       int64
	StagingDir string
}

type Fetcher struct {
	L hclog.Logger
}

func (f *Fetcher) logger() hclog.Logger {
	if f.L != nil {
		return f.L
	}

	return hclog.L()
}

// Probe HEADs a single URL and reports its size. Unknown lengths come back
// as 0 with ok=true.
func (f *Fetcher) Probe(ctx context.Context, url string) (int64, bool, error) {
	resp, err := cleanhttp.Head(ctx, url)
	if err != nil {
		return 0, false, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		notFound := resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound
		return 0, false, &statusError{code: resp.StatusCode, notFound: notFound}
	}

	if resp.ContentLength < 0 {
		return 0, true, nil
	}

	return resp.ContentLength, true, nil
}

type statusError struct {
	code     int
	notFound bool
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Fetch probes every candidate, downloads the smallest one into a hidden
// staging directory beside parentDir, and returns the archive.
func (f *Fetcher) Fetch(ctx context.Context, version string, candidates []Candidate, parentDir string) (*Archive, error) {
	best := -1

	var (
		bestSize    int64
		sawNotFound bool
	)

	for i, c := range candidates {
		size, ok, err := f.Probe(ctx, c.URL)
		if err != nil {
			if se, isStatus := err.(*statusError); isStatus && se.notFound {
				sawNotFound = true
			}

			f.logger().Debug("probe failed", "format", c.Format, "url", c.URL, "error", err)
			continue
		}

		if !ok {
			continue
		}

		f.logger().Debug("probed archive", "format", c.Format, "size", size)

		if best == -1 || (size > 0 && (bestSize == 0 || size < bestSize)) {
			best = i
			bestSize = size
		}
	}

	if best == -1 {
		if sawNotFound {
			return nil, &NotFoundError{Version: version}
		}

		return nil, &NoArchiveError{Version: version}
	}

	chosen := candidates[best]

	staging := filepath.Join(parentDir, ".strata-"+randomSuffix())

	err := os.MkdirAll(staging, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "creating staging directory %s", staging)
	}

	path := filepath.Join(staging, "archive."+chosen.Format)

	size, err := f.download(ctx, chosen.URL, path, bestSize, version)
	if err != nil {
		os.RemoveAll(staging)

		if _, ok := err.(*NotFoundError); ok {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, err
		}

		return nil, &DownloadError{Version: version, Err: err}
	}

	return &Archive{
		Path:       path,
		Format:     chosen.Format,
		Size:       size,
		StagingDir: staging,
	}, nil
}

func (f *Fetcher) download(ctx context.Context, url, path string, expected int64, version string) (int64, error) {
	resp, err := cleanhttp.Get(ctx, url)
	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fine
	case http.StatusForbidden, http.StatusNotFound:
		return 0, &NotFoundError{Version: version}
	default:
		return 0, errors.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	total := resp.ContentLength
	if total < 0 {
		total = expected
	}

	w, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", path)
	}

	defer w.Close()

	bar := progress.Bytes(ctx, total, "Downloading Strata "+version)
	defer bar.Close()

	n, err := io.Copy(io.MultiWriter(w, bar), resp.Body)
	if err != nil {
		return 0, err
	}

	return n, nil
}

func randomSuffix() string {
	b := make([]byte, 6)

	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return base58.Encode(b)
}
