package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yates-Labs/frc-reviewer/internal/llm"
	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/skill"
)

var issueSchema = llm.Object(map[string]any{
	"file":      llm.String("Relative path to the file containing the issue"),
	"line":      llm.Integer("Line number in the new file where the issue occurs"),
	"severity":  llm.Enum("", string(SeverityCritical), string(SeverityWarning), string(SeveritySuggestion)),
	"skill":     llm.String("Name of the skill/rule this issue relates to"),
	"reasoning": llm.String("Chain-of-thought explanation before stating the message"),
	"message":   llm.String("Human-readable comment to post as a GitHub review comment"),
})

var candidateSchema = llm.Object(map[string]any{
	"issues": llm.Array(issueSchema, ""),
})

type candidates struct {
	Issues []Issue `json:"issues"`
}

// Input is everything the review pass sees.
type Input struct {
	Summary PRSummary
	Files   []ChangedFile
	Skills  []skill.Skill

	// Contents holds full file text for significant files, keyed by filename.
	Contents map[string]string
}

// Review runs the second pass and returns candidate issues. Issues without a
// file or a positive line number are discarded.
func Review(ctx context.Context, model llm.Model, in Input) ([]Issue, error) {
	var fullFiles string
	if text := renderContents(in.Contents, in.Summary.Significant()); text != "" {
		fullFiles = "## Full File Contents (architecturally significant files)\n" + text
	}

	prompt := fmt.Sprintf(`## PR Goal
%s

## File Summaries
%s
## FRC Skills & Rules to Apply
%s

%s

<user-content>
## Diffs
%s

%s
</user-content>

Review the code above against the FRC skills and rules. For each real issue found, report it with the file path, exact line number, severity, which skill it violates, your reasoning, and a helpful review comment.

Only report issues that are clearly present in the changed code. Do not invent issues.`,
		in.Summary.Goal, renderFileSummaries(in.Summary), renderSkills(in.Skills),
		untrustedNotice, renderDiffs(in.Files, false), fullFiles)

	var out candidates
	err := model.GenerateStructured(ctx, llm.Request{
		Name:    "review_candidates",
		Schema:  candidateSchema,
		// Severity spellings are normalized by Severity.UnmarshalJSON.
		Lenient: []string{"severity"},
		System:  reviewSystemPrompt,
		Prompt:  prompt,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("review pass: %w", err)
	}

	issues := make([]Issue, 0, len(out.Issues))
	for _, issue := range out.Issues {
		issue.File = strings.TrimSpace(issue.File)
		if issue.File == "" || issue.Line <= 0 {
			log.Warn("discarding candidate issue without a valid location", "file", issue.File, "line", issue.Line)
			continue
		}
		if issue.Severity == "" {
			issue.Severity = SeverityWarning
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
