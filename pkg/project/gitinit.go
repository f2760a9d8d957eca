package project

import (
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
)

// InitRepo turns the freshly scaffolded directory into a git repository
// with a single commit holding the skeleton.
func InitRepo(dir, author string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return errors.Wrapf(err, "initializing git repository in %s", dir)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.WithStack(err)
	}

	err = wt.AddWithOptions(&git.AddOptions{All: true})
	if err != nil {
		return errors.Wrap(err, "staging scaffolded files")
	}

	if author == "" {
		author = "strata"
	}

	_, err = wt.Commit("Initial project scaffold", &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: author + "@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating initial commit")
	}

	return nil
}
