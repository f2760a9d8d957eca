package project

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

const (
	ManifestFile = "strata.json"
	LockFile     = "strata.lock"

	// PlaceholderSecret ships inside every skeleton's parameters file.
	PlaceholderSecret = "ThisTokenIsNotSoSecretChangeIt"
)

// parametersCandidates are tried in order; the layout moved between major
// versions.
var parametersCandidates = []string{
	"config/parameters.json",
	"app/config/parameters.json",
}

// Patcher personalizes a freshly extracted skeleton. Nothing in here is
// fatal: a read-only tree degrades every step to a user-visible warning so
// the install itself still succeeds.
type Patcher struct {
	L     hclog.Logger
	Owner string

	// Output receives the degradation warnings.
	Output io.Writer
}

func (p *Patcher) logger() hclog.Logger {
	if p.L != nil {
		return p.L
	}

	return hclog.L()
}

func (p *Patcher) warn(format string, args ...interface{}) {
	if p.Output == nil {
		return
	}

	fmt.Fprintf(p.Output, "! "+format+"\n", args...)
}

// Patch runs every personalization step against the project at dir.
func (p *Patcher) Patch(dir, projectName string) {
	if err := p.ReplaceSecret(dir); err != nil {
		p.warn("could not replace the generated secret token in %s: %s", dir, err)
	}

	if err := p.PatchManifest(dir, projectName); err != nil {
		p.warn("could not personalize %s: %s", filepath.Join(dir, ManifestFile), err)
	}

	if err := p.RefreshLockHash(dir); err != nil {
		p.warn("could not refresh %s: %s", filepath.Join(dir, LockFile), err)
	}

	// Cosmetic; failures here aren't worth a warning.
	p.ensureGitignore(dir)
	p.ensureReadme(dir, projectName)
}

// ReplaceSecret swaps the placeholder secret in the parameters file for a
// freshly generated 40-hex-digit token.
func (p *Patcher) ReplaceSecret(dir string) error {
	for _, cand := range parametersCandidates {
		path := filepath.Join(dir, cand)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return err
		}

		var params map[string]interface{}

		err = json.Unmarshal(data, &params)
		if err != nil {
			return err
		}

		secret, ok := params["secret"].(string)
		if !ok || secret != PlaceholderSecret {
			return nil
		}

		params["secret"] = GenerateSecret()

		out, err := json.MarshalIndent(params, "", "    ")
		if err != nil {
			return err
		}

		err = os.WriteFile(path, append(out, '\n'), 0644)
		if err != nil {
			return err
		}

		p.logger().Debug("replaced generated secret", "path", path)

		return nil
	}

	return nil
}

// GenerateSecret returns a random 40-character hex token. A broken system
// randomness source must never degrade to a predictable secret.
func GenerateSecret() string {
	b := make([]byte, 20)

	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return hex.EncodeToString(b)
}

// PatchManifest rewrites the package manifest's name to <owner>/<project>
// and drops the metadata fields that only make sense for the upstream
// skeleton: license, description, and the branch alias.
func (p *Patcher) PatchManifest(dir, projectName string) error {
	path := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	var m map[string]interface{}

	err = json.Unmarshal(data, &m)
	if err != nil {
		return err
	}

	m["name"] = Identifier(p.Owner, projectName)

	delete(m, "license")
	delete(m, "description")

	if extra, ok := m["extra"].(map[string]interface{}); ok {
		delete(extra, "branch-alias")

		if len(extra) == 0 {
			delete(m, "extra")
		}
	}

	out, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(out, '\n'), 0644)
}

// RefreshLockHash recomputes the lockfile's content-hash after the
// manifest edit so the dependency manager doesn't report it stale.
func (p *Patcher) RefreshLockHash(dir string) error {
	lockPath := filepath.Join(dir, LockFile)

	lockData, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	var lock map[string]interface{}

	err = json.Unmarshal(lockData, &lock)
	if err != nil {
		return err
	}

	if _, ok := lock["content-hash"]; !ok {
		return nil
	}

	manifestData, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return err
	}

	hash, err := ContentHash(manifestData)
	if err != nil {
		return err
	}

	lock["content-hash"] = hash

	out, err := json.MarshalIndent(lock, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(lockPath, append(out, '\n'), 0644)
}

var defaultGitignore = `/vendor/
/var/cache/*
/var/logs/*
/var/sessions/*
!*/.keep
/config/parameters.json
`

func (p *Patcher) ensureGitignore(dir string) {
	path := filepath.Join(dir, ".gitignore")

	if _, err := os.Stat(path); err == nil {
		return
	}

	os.WriteFile(path, []byte(defaultGitignore), 0644)
}

func (p *Patcher) ensureReadme(dir, projectName string) {
	path := filepath.Join(dir, "README.md")

	if _, err := os.Stat(path); err == nil {
		return
	}

	content := fmt.Sprintf("# %s\n\nA Strata project created with the installer.\n",
		NormalizeName(projectName))

	os.WriteFile(path, []byte(content), 0644)
}
