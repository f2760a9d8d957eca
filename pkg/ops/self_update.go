package ops

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/strata-dev/installer/pkg/cleanhttp"
	"github.com/strata-dev/installer/pkg/config"
	"github.com/strata-dev/installer/pkg/fetch"
	"github.com/strata-dev/installer/pkg/pipeline"
)

// SelfUpdate replaces the running executable with the newest published
// build, keeping a backup until the swap has succeeded.
type SelfUpdate struct {
	common

	Config *config.Config
	Output io.Writer

	CurrentVersion string
	Force          bool

	// ExePath overrides the binary to manage; it defaults to the running
	// executable.
	ExePath string
}

func (o *SelfUpdate) Update(ctx context.Context) error {
	latest, err := o.latestVersion(ctx)
	if err != nil {
		return err
	}

	if latest == o.CurrentVersion && !o.Force {
		fmt.Fprintf(o.Output, "strata %s is already the newest build.\n", o.CurrentVersion)
		return nil
	}

	exe := o.ExePath

	if exe == "" {
		exe, err = os.Executable()
		if err != nil {
			return track(err)
		}

		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return track(err)
		}
	}

	url := o.Config.UpdateBinaryURL(latest, runtime.GOOS, runtime.GOARCH)

	o.L().Debug("self-update", "current", o.CurrentVersion, "latest", latest, "url", url)

	p := pipeline.Pipeline{L: o.L(), Output: o.Output}

	var downloaded string

	p.Step("download", func(ctx context.Context) error {
		f := fetch.Fetcher{L: o.L()}

		// Staged beside the executable so the final rename stays on one
		// filesystem.
		ar, err := f.Fetch(ctx, latest, []fetch.Candidate{
			{Format: "bin", URL: url},
		}, filepath.Dir(exe))
		if err != nil {
			return err
		}

		downloaded = ar.Path

		p.Always(func() error {
			return os.RemoveAll(ar.StagingDir)
		})

		return os.Chmod(downloaded, 0755)
	})

	p.Step("swap", func(context.Context) error {
		if err := swapBinary(exe, downloaded); err != nil {
			return err
		}

		fmt.Fprintf(o.Output, "Updated strata %s -> %s\n", o.CurrentVersion, latest)

		return nil
	})

	return p.Run(ctx)
}

// swapBinary installs downloaded over exe. The old build is kept at
// exe+".bak" until the install rename has succeeded, and restored when it
// has not, so a failed update never leaves the user without a binary.
func swapBinary(exe, downloaded string) error {
	backup := exe + ".bak"

	if err := os.Rename(exe, backup); err != nil {
		return errors.Wrapf(err, "backing up %s", exe)
	}

	if err := os.Rename(downloaded, exe); err != nil {
		if restoreErr := os.Rename(backup, exe); restoreErr != nil {
			return errors.Wrapf(err, "installing the new build failed and the backup at %s could not be restored (%s)", backup, restoreErr)
		}

		return errors.Wrapf(err, "installing the new build into %s", exe)
	}

	os.Remove(backup)

	return nil
}

func (o *SelfUpdate) latestVersion(ctx context.Context) (string, error) {
	url := o.Config.UpdateChannelURL()

	resp, err := cleanhttp.Get(ctx, url)
	if err != nil {
		return "", errors.Wrapf(err, "checking the update channel at %s", url)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("checking the update channel at %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", track(err)
	}

	latest := strings.TrimSpace(string(data))
	if latest == "" {
		return "", errors.Errorf("the update channel at %s returned an empty version", url)
	}

	return latest, nil
}
