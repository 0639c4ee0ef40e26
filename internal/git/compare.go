// Package git compares commits in a local clone with go-git. It serves as the
// commit-range comparer when the workflow checked out full history, saving
// the compare API call.
package git

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Comparer lists files changed between two commits of a local repository.
type Comparer struct {
	repo *git.Repository
}

// OpenRepository opens a Git repository from a local path
func OpenRepository(path string) (*Comparer, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return NewComparer(repo), nil
}

func NewComparer(repo *git.Repository) *Comparer {
	return &Comparer{repo: repo}
}

// CompareCommits returns the sorted paths touched between base and head.
// Renamed files are reported under their new path; deleted files under
// their old one. Both revisions must be present in the clone.
func (c *Comparer) CompareCommits(ctx context.Context, base, head string) ([]string, error) {
	from, err := c.commit(base)
	if err != nil {
		return nil, err
	}
	to, err := c.commit(head)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patch, err := from.Patch(to)
	if err != nil {
		return nil, fmt.Errorf("failed to get patch %s..%s: %w", base, head, err)
	}

	seen := make(map[string]bool)
	for _, filePatch := range patch.FilePatches() {
		before, after := filePatch.Files()

		switch {
		case after != nil:
			seen[after.Path()] = true
		case before != nil:
			seen[before.Path()] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Comparer) commit(rev string) (*object.Commit, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rev, err)
	}
	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", rev, err)
	}
	return commit, nil
}
