package review

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/frc-reviewer/internal/llm"
	"github.com/Yates-Labs/frc-reviewer/internal/log"
)

var verdictSchema = llm.Object(map[string]any{
	"confirmed": llm.Boolean("True if the issue is real and present in the code"),
	"reason":    llm.String("Brief explanation of why this issue is confirmed or rejected"),
})

// Verdict is the verify pass result for one issue.
type Verdict struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason"`
}

// VerifyIssue asks the model whether issue is really present in content.
// An empty content is reported to the model as unavailable.
func VerifyIssue(ctx context.Context, model llm.Model, issue Issue, content string) (Verdict, error) {
	fileContext := noContentPlaceholder
	if content != "" {
		fileContext = "```\n" + content + "\n```"
	}

	prompt := fmt.Sprintf(`## Issue to Verify
- **File:** %s
- **Line:** %d
- **Severity:** %s
- **Skill:** %s
- **Reasoning:** %s
- **Message:** %s

%s

<user-content>
## File Content
%s
</user-content>

Is this issue genuinely present at line %d in the file?
Confirm only if the code at that line clearly exhibits the reported problem.`,
		issue.File, issue.Line, issue.Severity, issue.Skill, issue.Reasoning, issue.Message,
		untrustedNotice, fileContext, issue.Line)

	var v Verdict
	err := model.GenerateStructured(ctx, llm.Request{
		Name:   "verify_issue",
		Schema: verdictSchema,
		System: verifySystemPrompt,
		Prompt: prompt,
	}, &v)
	if err != nil {
		return Verdict{}, fmt.Errorf("verifying %s:%d: %w", issue.File, issue.Line, err)
	}
	return v, nil
}

// Verify checks every issue independently and in parallel, returning the
// confirmed ones in their original order. limit bounds concurrent calls
// (<= 0 means unbounded). Any failed call fails the whole pass.
func Verify(ctx context.Context, model llm.Model, issues []Issue, contents map[string]string, limit int) ([]Issue, error) {
	verdicts := make([]Verdict, len(issues))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, issue := range issues {
		g.Go(func() error {
			v, err := VerifyIssue(ctx, model, issue, contents[issue.File])
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify pass: %w", err)
	}

	var confirmed []Issue
	for i, issue := range issues {
		if !verdicts[i].Confirmed {
			log.Debug("issue rejected by verification", "file", issue.File, "line", issue.Line, "reason", verdicts[i].Reason)
			continue
		}
		confirmed = append(confirmed, issue)
	}
	return confirmed, nil
}
