package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
	"github.com/strata-dev/installer/pkg/config"
	"github.com/strata-dev/installer/pkg/pipeline"
	"github.com/strata-dev/installer/pkg/progress"
	"github.com/strata-dev/installer/pkg/project"
	"github.com/strata-dev/installer/pkg/report"
)

// DemoVersion pins the demo variant; it only tracks stable milestones and
// is bumped by hand on release.
const DemoVersion = "3.4.1"

// DemoInstall fetches the fixed demo project. The demo archive is
// published flat (no wrapping root), so go-getter's dir mode drops it
// straight into place.
type DemoInstall struct {
	common

	Config *config.Config
	Output io.Writer

	Git bool
}

func (o *DemoInstall) Install(ctx context.Context, dir string) error {
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

	p := pipeline.Pipeline{L: o.L(), Output: o.Output}

	p.OnFailure(func() error {
		return releaseTarget(abs, preExisting)
	})

	p.Step("download", func(ctx context.Context) error {
		client := &getter.Client{
			Ctx:              ctx,
			Src:              o.Config.DemoURL(DemoVersion),
			Dst:              abs,
			Mode:             getter.ClientModeDir,
			ProgressListener: &getterProgress{ctx: ctx},
		}

		return client.Get()
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

	p.Step("report", func(context.Context) error {
		s := report.Summary{
			Version: DemoVersion + " (demo)",
			Dir:     abs,
			Name:    name,
		}

		s.Render(o.Output)

		return nil
	})

	return p.Run(ctx)
}

// getterProgress adapts go-getter's progress callbacks onto the shared
// progress bars.
type getterProgress struct {
	ctx context.Context
}

func (g *getterProgress) TrackProgress(src string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	bar := progress.Bytes(g.ctx, totalSize, "Downloading demo")

	return &progressReadCloser{rc: stream, bar: bar}
}

type progressReadCloser struct {
	rc  io.ReadCloser
	bar *progress.Progress
}

func (p *progressReadCloser) Read(b []byte) (int, error) {
	n, err := p.rc.Read(b)
	if n > 0 {
		p.bar.Add(int64(n))
	}

	return n, err
}

func (p *progressReadCloser) Close() error {
	p.bar.Close()
	return p.rc.Close()
}
