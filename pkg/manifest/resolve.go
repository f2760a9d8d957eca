package manifest

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// InvalidSyntaxError reports a token that doesn't match the version
// grammar at all.
type InvalidSyntaxError struct {
	Token string
}

func (e *InvalidSyntaxError) Error() string {
	return fmt.Sprintf(
		"%q is not a valid version: use \"latest\", \"lts\", a branch like \"3.4\", or a full version like \"3.4.1\"",
		e.Token,
	)
}

// UnmaintainedBranchError reports a branch the project no longer ships
// archives for.
type UnmaintainedBranchError struct {
	Branch string
}

func (e *UnmaintainedBranchError) Error() string {
	return fmt.Sprintf(
		"the %s branch is unmaintained and cannot be installed: retry with the alias \"latest\" to get the newest stable release",
		e.Branch,
	)
}

// NotInstallableError reports a concrete version the download server won't
// serve. The message carries the manual fallback verbatim.
type NotInstallableError struct {
	Version string
}

func (e *NotInstallableError) Error() string {
	return fmt.Sprintf(
		"version %s cannot be installed by this tool: run \"compose create-project strata/standard <directory> %s\" instead",
		e.Version, e.Version,
	)
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?(?:-([dD][eE][vV]|[bB][eE][tT][aA]\d*|[rR][cC]\d*))?$`)

type parsed struct {
	major, minor, patch int
	hasPatch            bool
	suffix              string
}

func (p parsed) branch() string {
	return fmt.Sprintf("%d.%d", p.major, p.minor)
}

func parseVersion(s string) (parsed, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return parsed{}, false
	}

	var p parsed

	p.major, _ = strconv.Atoi(m[1])
	p.minor, _ = strconv.Atoi(m[2])

	if m[3] != "" {
		p.patch, _ = strconv.Atoi(m[3])
		p.hasPatch = true
	}

	p.suffix = normalizeSuffix(m[4])

	return p, true
}

// normalizeSuffix upper-cases BETA/RC for the case-sensitive download
// server; -dev stays lower-case since that's how dev builds are published.
func normalizeSuffix(s string) string {
	if s == "" {
		return ""
	}

	if strings.EqualFold(s, "dev") {
		return "dev"
	}

	return strings.ToUpper(s)
}

// Resolver turns user version tokens into concrete, installable versions.
type Resolver struct {
	Manifest *Manifest
	Policy   *Policy

	// Output receives non-fatal user-facing warnings, such as picking a
	// pre-release.
	Output io.Writer
}

// Resolve validates and normalizes token per the grammar
// latest | lts | MAJOR.MINOR(.PATCH)?(-(dev|BETAn|RCn))? and returns the
// concrete version every later stage uses.
func (r *Resolver) Resolve(token string) (string, error) {
	policy := r.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	version := token

	switch strings.ToLower(token) {
	case "latest":
		version = r.Manifest.Latest
	case "lts":
		version = r.Manifest.LTS
	}

	p, ok := parseVersion(version)
	if !ok {
		return "", &InvalidSyntaxError{Token: token}
	}

	if policy.BranchUnmaintained(p.branch()) {
		return "", &UnmaintainedBranchError{Branch: p.branch()}
	}

	if !p.hasPatch && p.suffix == "" {
		concrete, ok := r.Manifest.Branches[p.branch()]
		if !ok {
			return "", &UnmaintainedBranchError{Branch: p.branch()}
		}

		cp, ok := parseVersion(concrete)
		if !ok {
			return "", &NotInstallableError{Version: concrete}
		}

		p = cp
	}

	resolved := rebuild(p)

	if p.hasPatch && policy.BelowFloor(p.branch(), p.patch) {
		return "", &NotInstallableError{Version: resolved}
	}

	if r.Manifest.Vetoed(resolved) {
		return "", &NotInstallableError{Version: resolved}
	}

	if p.suffix != "" {
		// Pre-releases are presumptively installable; they come and go
		// too fast for the manifest lists to track.
		if r.Output != nil {
			fmt.Fprintf(r.Output, "! %s is a pre-release and is not supported for production use.\n", resolved)
		}

		return resolved, nil
	}

	if !r.Manifest.IsInstallable(resolved) {
		return "", &NotInstallableError{Version: resolved}
	}

	return resolved, nil
}

func rebuild(p parsed) string {
	s := fmt.Sprintf("%d.%d", p.major, p.minor)

	if p.hasPatch {
		s += fmt.Sprintf(".%d", p.patch)
	}

	if p.suffix != "" {
		s += "-" + p.suffix
	}

	return s
}
