package manifest

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"github.com/strata-dev/installer/pkg/cleanhttp"

	"context"
)

// Manifest is the remote description of every published framework version.
// Fetched once per invocation and held in memory only.
type Manifest struct {
	Latest string
	LTS    string
	Dev    string

	Installable    []string
	NonInstallable []string

	// Branches maps MAJOR.MINOR to the newest patch release on that branch.
	Branches map[string]string
}

var branchKey = regexp.MustCompile(`^\d+\.\d+$`)

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	str := func(key string, dest *string) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}

		return json.Unmarshal(v, dest)
	}

	if err := str("latest", &m.Latest); err != nil {
		return err
	}

	if err := str("lts", &m.LTS); err != nil {
		return err
	}

	if err := str("dev", &m.Dev); err != nil {
		return err
	}

	if v, ok := raw["installable"]; ok {
		if err := json.Unmarshal(v, &m.Installable); err != nil {
			return err
		}
	}

	if v, ok := raw["non_installable"]; ok {
		if err := json.Unmarshal(v, &m.NonInstallable); err != nil {
			return err
		}
	}

	m.Branches = make(map[string]string)

	for key, v := range raw {
		if !branchKey.MatchString(key) {
			continue
		}

		var patch string

		if err := json.Unmarshal(v, &patch); err != nil {
			return errors.Wrapf(err, "branch entry %s", key)
		}

		m.Branches[key] = patch
	}

	return nil
}

// BranchNames returns the manifest's branches in ascending version order.
func (m *Manifest) BranchNames() []string {
	var names []string

	for name := range m.Branches {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		a, _ := parseVersion(names[i])
		b, _ := parseVersion(names[j])

		if a.major != b.major {
			return a.major < b.major
		}

		return a.minor < b.minor
	})

	return names
}

// Vetoed reports whether the manifest explicitly forbids a version. The
// veto binds unconditionally, pre-releases included.
func (m *Manifest) Vetoed(version string) bool {
	for _, v := range m.NonInstallable {
		if v == version {
			return true
		}
	}

	return false
}

func (m *Manifest) IsInstallable(version string) bool {
	if m.Vetoed(version) {
		return false
	}

	for _, v := range m.Installable {
		if v == version {
			return true
		}
	}

	return false
}

// Fetch retrieves and decodes the version manifest.
func Fetch(ctx context.Context, url string) (*Manifest, error) {
	resp, err := cleanhttp.Get(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching version manifest from %s", url)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching version manifest from %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading version manifest")
	}

	var m Manifest

	err = json.Unmarshal(data, &m)
	if err != nil {
		return nil, errors.Wrap(err, "decoding version manifest")
	}

	return &m, nil
}
