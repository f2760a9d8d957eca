package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/strata-dev/installer/pkg/progress"
)

// CorruptArchiveError means the archive is structurally unreadable.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("the downloaded archive %s is corrupt and cannot be read: delete it and retry the installation", e.Path)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}

// EmptyArchiveError means the archive decoded fine but held zero entries.
type EmptyArchiveError struct {
	Path string
}

func (e *EmptyArchiveError) Error() string {
	return fmt.Sprintf("the downloaded archive %s contains no files: the published build is broken, retry with \"latest\"", e.Path)
}

// NotWritableError means the destination refused writes.
type NotWritableError struct {
	Target string
	Err    error
}

func (e *NotWritableError) Error() string {
	return fmt.Sprintf("cannot write into %s: fix the directory permissions and retry", e.Target)
}

func (e *NotWritableError) Unwrap() error {
	return e.Err
}

// Error is the generic extraction failure.
type Error struct {
	Path   string
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %s into %s failed: %s", e.Path, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Extractor struct {
	L hclog.Logger
}

func (x *Extractor) logger() hclog.Logger {
	if x.L != nil {
		return x.L
	}

	return hclog.L()
}

// Extract unpacks the archive at path into target, stripping the single
// wrapping root folder so <root>/a/b lands at target/a/b.
func (x *Extractor) Extract(ctx context.Context, path, format, target string) error {
	err := os.MkdirAll(target, 0755)
	if err != nil {
		if os.IsPermission(err) {
			return &NotWritableError{Target: target, Err: err}
		}

		return &Error{Path: path, Target: target, Err: err}
	}

	var entries int

	switch format {
	case "zip":
		entries, err = x.extractZip(ctx, path, target)
	case "tgz":
		entries, err = x.extractTgz(ctx, path, target)
	default:
		err = errors.Errorf("unknown archive format %q", format)
	}

	if err != nil {
		return x.classify(path, target, err)
	}

	if entries == 0 {
		return &EmptyArchiveError{Path: path}
	}

	x.logger().Debug("extracted archive", "path", path, "target", target, "entries", entries)

	return nil
}

func (x *Extractor) classify(path, target string, err error) error {
	switch {
	case isCorrupt(err):
		return &CorruptArchiveError{Path: path, Err: err}
	case os.IsPermission(errors.Cause(err)):
		return &NotWritableError{Target: target, Err: err}
	default:
		return &Error{Path: path, Target: target, Err: err}
	}
}

func isCorrupt(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, tar.ErrHeader) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func (x *Extractor) extractZip(ctx context.Context, path, target string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, err
	}

	defer zr.Close()

	bar := progress.Count(ctx, int64(len(zr.File)), "Extracting")
	defer bar.Close()

	var entries int

	for _, zf := range zr.File {
		bar.Tick()

		name, ok := stripRoot(zf.Name)
		if !ok {
			continue
		}

		dest, err := secureJoin(target, name)
		if err != nil {
			return entries, err
		}

		mode := zf.Mode()

		if mode.IsDir() {
			err = os.MkdirAll(dest, 0755)
			if err != nil {
				return entries, err
			}

			continue
		}

		err = os.MkdirAll(filepath.Dir(dest), 0755)
		if err != nil {
			return entries, err
		}

		r, err := zf.Open()
		if err != nil {
			return entries, err
		}

		if mode.Type() == os.ModeSymlink {
			linkTarget, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return entries, err
			}

			os.Remove(dest)

			err = os.Symlink(string(linkTarget), dest)
			if err != nil {
				return entries, err
			}
		} else {
			err = writeFile(dest, r, mode.Perm())
			r.Close()
			if err != nil {
				return entries, err
			}
		}

		entries++
	}

	return entries, nil
}

func (x *Extractor) extractTgz(ctx context.Context, path, target string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}

	tr := tar.NewReader(gr)

	// Entry count is unknown until the stream ends, so this spins.
	bar := progress.Count(ctx, -1, "Extracting")
	defer bar.Close()

	var entries int

	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return entries, err
		}

		bar.Tick()

		name, ok := stripRoot(hdr.Name)
		if !ok {
			continue
		}

		dest, err := secureJoin(target, name)
		if err != nil {
			return entries, err
		}

		fi := hdr.FileInfo()

		switch {
		case fi.IsDir():
			err = os.MkdirAll(dest, 0755)
			if err != nil {
				return entries, err
			}
		case fi.Mode().Type() == os.ModeSymlink:
			err = os.MkdirAll(filepath.Dir(dest), 0755)
			if err != nil {
				return entries, err
			}

			os.Remove(dest)

			err = os.Symlink(hdr.Linkname, dest)
			if err != nil {
				return entries, err
			}

			entries++
		case fi.Mode().IsRegular():
			err = os.MkdirAll(filepath.Dir(dest), 0755)
			if err != nil {
				return entries, err
			}

			err = writeFile(dest, tr, fi.Mode().Perm())
			if err != nil {
				return entries, err
			}

			entries++
		}
	}

	return entries, nil
}

func writeFile(dest string, r io.Reader, perm os.FileMode) error {
	w, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0200)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, r)
	if err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// stripRoot drops the archive's wrapping top-level folder from an entry
// name. The root folder itself, and oddities like "./", map to ok=false.
func stripRoot(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")

	idx := strings.IndexByte(name, '/')
	if idx == -1 {
		return "", false
	}

	rest := name[idx+1:]
	if rest == "" {
		return "", false
	}

	return rest, true
}

func secureJoin(target, name string) (string, error) {
	dest := filepath.Join(target, filepath.FromSlash(name))

	if !strings.HasPrefix(dest, filepath.Clean(target)+string(os.PathSeparator)) {
		return "", errors.Errorf("archive entry %q escapes the target directory", name)
	}

	return dest, nil
}
