package ops

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/strata-dev/installer/pkg/config"
	"github.com/strata-dev/installer/pkg/fetch"
	"github.com/strata-dev/installer/pkg/humanize"
	"github.com/strata-dev/installer/pkg/manifest"
)

// VersionsList prints the remote manifest, or the details of a single
// resolvable version.
type VersionsList struct {
	common

	Config *config.Config
	Output io.Writer

	Debug bool
}

func (o *VersionsList) Show(ctx context.Context, token string) error {
	m, err := manifest.Fetch(ctx, o.Config.ManifestURL)
	if err != nil {
		return err
	}

	if o.Debug {
		spew.Fdump(o.Output, m)
	}

	if token == "" {
		return o.showAll(m)
	}

	return o.showOne(ctx, m, token)
}

func (o *VersionsList) showAll(m *manifest.Manifest) error {
	policy, err := loadPolicy(o.Config)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(o.Output, 4, 2, 1, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ALIAS\tVERSION")
	fmt.Fprintf(tw, "latest\t%s\n", m.Latest)
	fmt.Fprintf(tw, "lts\t%s\n", m.LTS)
	fmt.Fprintf(tw, "dev\t%s\n", m.Dev)

	fmt.Fprintln(tw, "\nBRANCH\tNEWEST PATCH\tSTATUS")

	for _, branch := range m.BranchNames() {
		status := "maintained"

		if policy.BranchUnmaintained(branch) {
			status = "unmaintained"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", branch, m.Branches[branch], status)
	}

	if len(m.Installable)+len(m.NonInstallable) > 0 {
		fmt.Fprintln(tw, "\nVERSION\tINSTALLABLE")

		for _, v := range m.Installable {
			fmt.Fprintf(tw, "%s\tyes\n", v)
		}

		for _, v := range m.NonInstallable {
			fmt.Fprintf(tw, "%s\tno\n", v)
		}
	}

	return nil
}

func (o *VersionsList) showOne(ctx context.Context, m *manifest.Manifest, token string) error {
	policy, err := loadPolicy(o.Config)
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

	fmt.Fprintf(o.Output, "Version: %s\n", version)

	f := fetch.Fetcher{L: o.L()}

	for _, format := range archiveFormats {
		url := o.Config.ArchiveURL(version, format)

		size, ok, err := f.Probe(ctx, url)
		if err != nil || !ok {
			fmt.Fprintf(o.Output, "  %s: unavailable\n", format)
			continue
		}

		fmt.Fprintf(o.Output, "  %s: %s\n", format, humanize.FormatSize(size))
	}

	return nil
}
