package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/strata-dev/installer/pkg/config"
	"github.com/strata-dev/installer/pkg/extract"
	"github.com/strata-dev/installer/pkg/fetch"
	"github.com/strata-dev/installer/pkg/lockfile"
	"github.com/strata-dev/installer/pkg/manifest"
	"github.com/strata-dev/installer/pkg/pipeline"
	"github.com/strata-dev/installer/pkg/project"
	"github.com/strata-dev/installer/pkg/report"
	"github.com/strata-dev/installer/pkg/require"
)

// archiveFormats are probed in declaration order; the fetcher still picks
// whichever resolves smallest.
var archiveFormats = []string{"zip", "tgz"}

// ProjectNew installs a fresh framework skeleton: resolve, download,
// extract, personalize, check requirements, report.
type ProjectNew struct {
	common

	Config *config.Config
	Output io.Writer

	Git              bool
	SkipRequirements bool
}

func (o *ProjectNew) Install(ctx context.Context, dir, token string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return track(err)
	}

	name := filepath.Base(abs)

	unlock, err := lockTarget(ctx, abs, o.Output)
	if err != nil {
		return err
	}

	defer unlock()

	preExisting, err := claimTarget(abs)
	if err != nil {
		return err
	}

	policy, err := loadPolicy(o.Config)
	if err != nil {
		return err
	}

	m, err := manifest.Fetch(ctx, o.Config.ManifestURL)
	if err != nil {
		return err
	}

	resolver := &manifest.Resolver{
		Manifest: m,
		Policy:   policy,
		Output:   o.Output,
	}

	version, err := resolver.Resolve(token)
	if err != nil {
		return err
	}

	o.L().Debug("resolved version", "requested", token, "version", version)

	var candidates []fetch.Candidate

	for _, format := range archiveFormats {
		candidates = append(candidates, fetch.Candidate{
			Format: format,
			URL:    o.Config.ArchiveURL(version, format),
		})
	}

	p := pipeline.Pipeline{L: o.L(), Output: o.Output}

	p.OnFailure(func() error {
		return releaseTarget(abs, preExisting)
	})

	var (
		archive *fetch.Archive
		unmet   []string
	)

	p.Step("download", func(ctx context.Context) error {
		f := fetch.Fetcher{L: o.L()}

		ar, err := f.Fetch(ctx, version, candidates, filepath.Dir(abs))
		if err != nil {
			return err
		}

		archive = ar

		p.Always(func() error {
			return os.RemoveAll(archive.StagingDir)
		})

		return nil
	})

	p.Step("extract", func(ctx context.Context) error {
		x := extract.Extractor{L: o.L()}
		return x.Extract(ctx, archive.Path, archive.Format, abs)
	})

	p.Step("configure", func(context.Context) error {
		patcher := project.Patcher{
			L:      o.L(),
			Owner:  o.Config.Owner,
			Output: o.Output,
		}

		patcher.Patch(abs, name)

		if o.Git {
			if err := project.InitRepo(abs, o.Config.Owner); err != nil {
				fmt.Fprintf(o.Output, "! could not initialize a git repository: %s\n", err)
			}
		}

		return nil
	})

	p.Step("requirements", func(context.Context) error {
		if o.SkipRequirements {
			return nil
		}

		c := require.Checker{L: o.L()}

		found, err := c.Check(abs)
		if err != nil {
			fmt.Fprintf(o.Output, "! could not evaluate the project requirements: %s\n", err)
			return nil
		}

		unmet = found

		return nil
	})

	p.Step("report", func(context.Context) error {
		s := report.Summary{
			Version: version,
			Dir:     abs,
			Name:    name,
			Unmet:   unmet,
		}

		s.Render(o.Output)

		return nil
	})

	return p.Run(ctx)
}

// loadPolicy picks the configured exclusion table, falling back to the
// published defaults.
func loadPolicy(cfg *config.Config) (*manifest.Policy, error) {
	if cfg.PolicyPath == "" {
		return manifest.DefaultPolicy(), nil
	}

	return manifest.LoadPolicy(cfg.PolicyPath)
}

// lockTarget serializes installer runs against one project directory.
func lockTarget(ctx context.Context, abs string, out io.Writer) (func(), error) {
	var warned bool

	return lockfile.Take(ctx, abs+".lock", func() {
		if !warned {
			warned = true
			fmt.Fprintf(out, "! Waiting for another install into %s to finish.\n", abs)
		}
	})
}

// claimTarget enforces the precondition that the project directory is
// empty or absent. It reports whether the directory already existed so
// cleanup can restore the pre-invocation state.
func claimTarget(abs string) (bool, error) {
	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, track(err)
	}

	if !fi.IsDir() {
		return false, errors.Errorf(
			"%s already exists and is not a directory: pick another location", abs)
	}

	ents, err := os.ReadDir(abs)
	if err != nil {
		return false, track(err)
	}

	if len(ents) > 0 {
		return false, errors.Errorf(
			"the directory %s is not empty: empty it or pick another location", abs)
	}

	return true, nil
}

// releaseTarget undoes whatever extraction put in place. A directory that
// existed before the run is emptied rather than removed.
func releaseTarget(abs string, preExisting bool) error {
	if !preExisting {
		return os.RemoveAll(abs)
	}

	ents, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, ent := range ents {
		if err := os.RemoveAll(filepath.Join(abs, ent.Name())); err != nil {
			return err
		}
	}

	return nil
}
