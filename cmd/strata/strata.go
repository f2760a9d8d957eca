package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/strata-dev/installer/pkg/cmd"
	"github.com/strata-dev/installer/pkg/config"
	"github.com/strata-dev/installer/pkg/ops"
)

// Version is stamped by the release build; the default marks dev builds.
var Version = "1.5.0"

func main() {
	c := cli.NewCLI("strata", Version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"new": func() (cli.Command, error) {
			return cmd.New(
				"new",
				"Install a new Strata project into a directory",
				newF,
			), nil
		},
		"demo": func() (cli.Command, error) {
			return cmd.New(
				"demo",
				"Install the Strata demo project",
				demoF,
			), nil
		},
		"versions": func() (cli.Command, error) {
			return cmd.New(
				"versions",
				"Show installable versions or details about one version",
				versionsF,
			), nil
		},
		"self-update": func() (cli.Command, error) {
			return cmd.New(
				"self-update",
				"Update this tool to the newest published build",
				selfUpdateF,
			), nil
		},
		"about": func() (cli.Command, error) {
			return cmd.New(
				"about",
				"Show information about this tool",
				aboutF,
			), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

func logger(debug, trace bool) hclog.Logger {
	level := hclog.Warn

	if debug {
		level = hclog.Debug
	}

	if trace {
		level = hclog.Trace
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:  "strata",
		Level: level,
	})
}

func newF(ctx context.Context, opts struct {
	Git              bool `long:"git" description:"initialize a git repository with an initial commit"`
	SkipRequirements bool `long:"no-requirements" description:"skip the project requirements check"`
	Debug            bool `long:"debug" description:"log in debug mode"`
	Trace            bool `long:"trace" description:"log in trace mode"`

	Pos struct {
		Directory string `positional-arg-name:"directory" required:"yes"`
		Version   string `positional-arg-name:"version"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	version := opts.Pos.Version
	if version == "" {
		version = "latest"
	}

	op := &ops.ProjectNew{
		Config:           cfg,
		Output:           os.Stdout,
		Git:              opts.Git,
		SkipRequirements: opts.SkipRequirements,
	}
	op.SetLogger(logger(opts.Debug, opts.Trace))

	return op.Install(ctx, opts.Pos.Directory, version)
}

func demoF(ctx context.Context, opts struct {
	Git   bool `long:"git" description:"initialize a git repository with an initial commit"`
	Debug bool `long:"debug" description:"log in debug mode"`

	Pos struct {
		Directory string `positional-arg-name:"directory"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	dir := opts.Pos.Directory
	if dir == "" {
		dir = "strata-demo"
	}

	op := &ops.DemoInstall{
		Config: cfg,
		Output: os.Stdout,
		Git:    opts.Git,
	}
	op.SetLogger(logger(opts.Debug, false))

	return op.Install(ctx, dir)
}

func versionsF(ctx context.Context, opts struct {
	Debug bool `short:"d" long:"debug" description:"dump the raw manifest"`

	Pos struct {
		Version string `positional-arg-name:"version"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	op := &ops.VersionsList{
		Config: cfg,
		Output: os.Stdout,
		Debug:  opts.Debug,
	}
	op.SetLogger(logger(opts.Debug, false))

	return op.Show(ctx, opts.Pos.Version)
}

func selfUpdateF(ctx context.Context, opts struct {
	Force bool `short:"f" long:"force" description:"reinstall even when already on the newest build"`
	Debug bool `long:"debug" description:"log in debug mode"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	op := &ops.SelfUpdate{
		Config:         cfg,
		Output:         os.Stdout,
		CurrentVersion: Version,
		Force:          opts.Force,
	}
	op.SetLogger(logger(opts.Debug, false))

	return op.Update(ctx)
}

func aboutF(ctx context.Context, opts struct{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	osName, osVersion, arch := config.Platform()

	fmt.Printf("strata %s (%s/%s)\n\n", Version, runtime.GOOS, runtime.GOARCH)
	fmt.Printf("The installer for the Strata web framework.\n\n")
	fmt.Printf("Mirror:   %s\n", cfg.MirrorURL)
	fmt.Printf("Manifest: %s\n", cfg.ManifestURL)
	fmt.Printf("Platform: %s %s (%s)\n\n", osName, osVersion, arch)
	fmt.Printf("Install a project with: strata new <directory> [version]\n")

	return nil
}
