package manifest

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Policy is the exclusion table for historical releases. The set of
// unmaintained branches and minimum patch levels changed over the life of
// the download server, so it lives in data rather than in code and can be
// replaced wholesale from a JSON file.
type Policy struct {
	// UnmaintainedBranches lists MAJOR.MINOR branches that are refused
	// outright, at any patch level.
	UnmaintainedBranches []string `json:"unmaintained_branches"`

	// PatchFloors maps a branch to the lowest installable patch number on
	// it. The floor itself is installable.
	PatchFloors map[string]int `json:"patch_floors"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		UnmaintainedBranches: []string{"2.0", "2.1", "2.2", "2.4"},
		PatchFloors: map[string]int{
			"2.3": 21,
			"2.5": 6,
		},
	}
}

func LoadPolicy(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening policy file %s", path)
	}

	defer f.Close()

	var p Policy

	err = json.NewDecoder(f).Decode(&p)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding policy file %s", path)
	}

	return &p, nil
}

func (p *Policy) BranchUnmaintained(branch string) bool {
	for _, b := range p.UnmaintainedBranches {
		if b == branch {
			return true
		}
	}

	return false
}

// BelowFloor reports whether the given patch level on a branch sits under
// the branch's minimum. Branches without a floor always pass.
func (p *Policy) BelowFloor(branch string, patch int) bool {
	floor, ok := p.PatchFloors[branch]
	if !ok {
		return false
	}

	return patch < floor
}
