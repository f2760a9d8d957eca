package require

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-wordwrap"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

// wrapColumn is the fixed width remediation text is wrapped to.
const wrapColumn = 72

// candidates are the requirements-file locations, newest layout first.
var candidates = []string{
	"var/requirements.json",
	"app/config/requirements.json",
}

// Requirement is one declarative check from the project's requirements
// file. The file carries data only; the check kinds are implemented here,
// never loaded from the project.
type Requirement struct {
	Check string `json:"check"`
	Test  string `json:"test"`
	Help  string `json:"help"`

	Path  string `json:"path,omitempty"`
	Name  string `json:"name,omitempty"`
	MinMB uint64 `json:"min_mb,omitempty"`
}

type reqFile struct {
	Requirements []Requirement `json:"requirements"`
}

type Checker struct {
	L hclog.Logger
}

func (c *Checker) logger() hclog.Logger {
	if c.L != nil {
		return c.L
	}

	return hclog.L()
}

// Check loads the project's requirements description and returns the
// wrapped remediation text of every unmet requirement. A project without
// a requirements file has nothing to check.
func (c *Checker) Check(dir string) ([]string, error) {
	reqs, path, err := c.load(dir)
	if err != nil {
		return nil, err
	}

	if reqs == nil {
		return nil, nil
	}

	c.logger().Debug("checking requirements", "path", path, "count", len(reqs))

	var unmet []string

	for _, r := range reqs {
		ok, detail := c.fulfilled(dir, r)
		if ok {
			continue
		}

		unmet = append(unmet, describe(r, detail))
	}

	return unmet, nil
}

func (c *Checker) load(dir string) ([]Requirement, string, error) {
	for _, cand := range candidates {
		path := filepath.Join(dir, cand)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, "", errors.Wrapf(err, "reading requirements file %s", path)
		}

		var rf reqFile

		err = json.Unmarshal(data, &rf)
		if err != nil {
			return nil, "", errors.Wrapf(err, "decoding requirements file %s", path)
		}

		return rf.Requirements, path, nil
	}

	return nil, "", nil
}

func (c *Checker) fulfilled(dir string, r Requirement) (bool, string) {
	switch r.Check {
	case "dir-writable":
		return dirWritable(filepath.Join(dir, r.Path))
	case "file-exists":
		if _, err := os.Stat(filepath.Join(dir, r.Path)); err != nil {
			return false, ""
		}

		return true, ""
	case "env-set":
		if os.Getenv(r.Name) == "" {
			return false, ""
		}

		return true, ""
	case "command-exists":
		if _, err := exec.LookPath(r.Name); err != nil {
			return false, ""
		}

		return true, ""
	case "min-memory-mb":
		vm, err := mem.VirtualMemory()
		if err != nil {
			return false, fmt.Sprintf("could not determine system memory: %s", err)
		}

		if vm.Total/(1024*1024) < r.MinMB {
			return false, fmt.Sprintf("only %dMB available", vm.Total/(1024*1024))
		}

		return true, ""
	default:
		return false, fmt.Sprintf("unknown check %q; update the installer", r.Check)
	}
}

func dirWritable(path string) (bool, string) {
	f, err := os.CreateTemp(path, ".strata-check-*")
	if err != nil {
		return false, ""
	}

	name := f.Name()
	f.Close()
	os.Remove(name)

	return true, ""
}

// describe concatenates the wrapped test and help text for one unmet
// requirement.
func describe(r Requirement, detail string) string {
	out := wordwrap.WrapString(r.Test, wrapColumn)

	if detail != "" {
		out += "\n" + wordwrap.WrapString(detail, wrapColumn)
	}

	if r.Help != "" {
		out += "\n" + wordwrap.WrapString(r.Help, wrapColumn)
	}

	return out
}
