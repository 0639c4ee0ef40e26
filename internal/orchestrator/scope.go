package orchestrator

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/review"
	"github.com/Yates-Labs/frc-reviewer/internal/state"
)

// resolveScope returns the files to review. With a prior review state the
// scope narrows to files changed since that commit; any failure on that path
// falls back to the full file list.
func (p *Pipeline) resolveScope(ctx context.Context, pr *review.PullRequest) ([]review.ChangedFile, bool, error) {
	files, err := p.platform.ListChangedFiles(ctx, pr.Number)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list changed files: %w", err)
	}

	prior, ok := p.priorState(ctx, pr.Number)
	if !ok {
		return files, false, nil
	}
	log.Info("found previous review", "sha", prior.SHA, "at", prior.Time())

	changed, err := p.comparer.CompareCommits(ctx, prior.SHA, pr.HeadSHA)
	if err != nil {
		log.Warn("could not compare with previously reviewed commit, reviewing all files", "base", prior.SHA, "head", pr.HeadSHA, "error", err)
		return files, false, nil
	}

	return intersect(files, changed), true, nil
}

func (p *Pipeline) priorState(ctx context.Context, number int) (state.State, bool) {
	comments, err := p.platform.ListIssueComments(ctx, number)
	if err != nil {
		log.Warn("could not list comments to find previous review", "error", err)
		return state.State{}, false
	}

	bodies := make([]string, len(comments))
	for i, c := range comments {
		bodies[i] = c.Body
	}
	return state.FindLast(bodies)
}

// intersect keeps the files whose name appears in names, in files order.
func intersect(files []review.ChangedFile, names []string) []review.ChangedFile {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	scoped := []review.ChangedFile{}
	for _, f := range files {
		if set[f.Filename] {
			scoped = append(scoped, f)
		}
	}
	return scoped
}
