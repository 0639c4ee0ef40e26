package review

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/frc-reviewer/internal/llm"
)

var summarySchema = llm.Object(map[string]any{
	"prGoal": llm.String("One or two sentence description of what this PR is trying to accomplish"),
	"files": llm.Array(llm.Object(map[string]any{
		"filename": llm.String(""),
		"summary":  llm.String("One sentence summary of what changed in this file"),
		"architecturallySignificant": llm.Boolean(
			"True if this file contains significant logic changes that warrant deep review (not just config, build files, or minor tweaks)"),
	}), ""),
})

// Summarize runs the first pass: one call over every scoped diff producing
// the PR goal and per-file summaries.
func Summarize(ctx context.Context, model llm.Model, files []ChangedFile) (PRSummary, error) {
	prompt := fmt.Sprintf(`Analyze this pull request diff and produce a structured summary.

<user-content>
## Changed Files
%s
</user-content>

Identify:
1. The overall goal of this PR (what robot behavior or system is being added, fixed or refactored?)
2. A brief summary of each file's changes
3. Which files are architecturally significant (contain meaningful robot logic changes)`, renderDiffs(files, true))

	var summary PRSummary
	err := model.GenerateStructured(ctx, llm.Request{
		Name:   "pr_summary",
		Schema: summarySchema,
		System: summarizeSystemPrompt,
		Prompt: prompt,
	}, &summary)
	if err != nil {
		return PRSummary{}, fmt.Errorf("summarize pass: %w", err)
	}
	return summary, nil
}
