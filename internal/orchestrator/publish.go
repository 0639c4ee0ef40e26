package orchestrator

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/frc-reviewer/internal/diff"
	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/review"
	"github.com/Yates-Labs/frc-reviewer/internal/state"
)

// publish posts the summary comment and the inline review. The summary is
// posted even with no issues so the state marker advances.
func (p *Pipeline) publish(ctx context.Context, pr *review.PullRequest, scope []review.ChangedFile, result *Result) error {
	result.Inline, result.Dropped = resolveInline(scope, result.Confirmed)

	// The marker must land inside the part of the body state.Decode scans.
	marker, err := state.Encode(state.New(pr.HeadSHA, p.now()))
	if err != nil {
		log.Warn("could not encode review state, next run will review all files", "sha", pr.HeadSHA, "error", err)
		marker = ""
	} else {
		marker = "\n\n" + marker
	}
	body := review.FormatSummaryCommentWithin(result.Summary, result.Confirmed, state.MaxBodySize-len(marker)) + marker
	result.SummaryBody = body

	if p.config.DryRun {
		result.Posted = result.Inline
		log.Info("dry run, not posting", "inline", len(result.Inline))
		return nil
	}

	if err := p.platform.CreateComment(ctx, pr.Number, body); err != nil {
		return fmt.Errorf("failed to post summary comment: %w", err)
	}

	result.Posted = p.dedupe(ctx, pr.Number, result.Inline)
	if len(result.Posted) == 0 {
		return nil
	}
	if err := p.platform.CreateReview(ctx, pr.Number, pr.HeadSHA, result.Posted); err != nil {
		return fmt.Errorf("failed to post review: %w", err)
	}
	log.Info("posted review", "inline", len(result.Posted), "skipped_duplicates", len(result.Inline)-len(result.Posted))
	return nil
}

// resolveInline maps each issue to its diff position. Issues on files
// without a patch, or on lines that are not added lines, are dropped.
func resolveInline(scope []review.ChangedFile, issues []review.Issue) ([]review.InlineComment, int) {
	patches := make(map[string]string, len(scope))
	for _, f := range scope {
		patches[f.Filename] = f.Patch
	}
	positions := diff.ComputeAll(patches)

	var comments []review.InlineComment
	dropped := 0
	for _, issue := range issues {
		m, ok := positions[issue.File]
		if !ok {
			log.Warn("no diff for issue file, dropping inline comment", "file", issue.File, "line", issue.Line)
			dropped++
			continue
		}
		pos, ok := m.Lookup(issue.Line)
		if !ok {
			log.Warn("issue line is not an added line, dropping inline comment", "file", issue.File, "line", issue.Line)
			dropped++
			continue
		}
		comments = append(comments, review.InlineComment{
			Path:     issue.File,
			Position: pos,
			Body:     review.FormatInlineComment(issue),
		})
	}
	return comments, dropped
}

type commentKey struct {
	path string
	body string
}

// dedupe removes comments whose path and body already exist on the pull
// request, and repeats within comments.
func (p *Pipeline) dedupe(ctx context.Context, number int, comments []review.InlineComment) []review.InlineComment {
	if len(comments) == 0 {
		return nil
	}

	seen := make(map[commentKey]bool)
	existing, err := p.platform.ListReviewComments(ctx, number)
	if err != nil {
		log.Warn("could not list existing review comments, duplicates may be posted", "error", err)
	}
	for _, c := range existing {
		seen[commentKey{c.Path, c.Body}] = true
	}

	var out []review.InlineComment
	for _, c := range comments {
		key := commentKey{c.Path, c.Body}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
