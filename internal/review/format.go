package review

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatSummaryComment renders the summary comment body, without the state marker.
func FormatSummaryComment(summary PRSummary, issues []Issue) string {
	return FormatSummaryCommentWithin(summary, issues, 0)
}

// FormatSummaryCommentWithin renders the summary comment in at most limit
// bytes (0 means unbounded). File entries are elided first, then issue
// entries, each replaced by an "...and N more" line. The counts always cover
// every issue. A body that still does not fit is cut at limit.
func FormatSummaryCommentWithin(summary PRSummary, issues []Issue, limit int) string {
	files, shown := len(summary.Files), len(issues)
	body := renderSummary(summary, issues, files, shown)
	if limit <= 0 {
		return body
	}

	for len(body) > limit && files > 0 {
		files--
		body = renderSummary(summary, issues, files, shown)
	}
	for len(body) > limit && shown > 0 {
		shown--
		body = renderSummary(summary, issues, files, shown)
	}
	if len(body) > limit {
		body = cut(body, limit)
	}
	return body
}

func renderSummary(summary PRSummary, issues []Issue, files, shown int) string {
	counts := CountIssues(issues)

	lines := []string{
		"## FRC Code Review",
		"",
		"**PR Goal:** " + summary.Goal,
		"",
		"### Summary",
		fmt.Sprintf("- %s Critical: %d", SeverityCritical.Icon(), counts.Critical),
		fmt.Sprintf("- %s Warnings: %d", SeverityWarning.Icon(), counts.Warnings),
		fmt.Sprintf("- %s Suggestions: %d", SeveritySuggestion.Icon(), counts.Suggestions),
		"",
	}

	if len(summary.Files) > 0 {
		lines = append(lines, "### Files Changed")
		for _, f := range summary.Files[:files] {
			tag := ""
			if f.ArchitecturallySignificant {
				tag = " ⭐"
			}
			lines = append(lines, fmt.Sprintf("- **%s**%s: %s", f.Filename, tag, f.Summary))
		}
		if more := len(summary.Files) - files; more > 0 {
			lines = append(lines, fmt.Sprintf("- _...and %d more %s_", more, plural(more, "file")))
		}
		lines = append(lines, "")
	}

	if len(issues) == 0 {
		lines = append(lines, "No issues found. ✅")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "### Issues Found")
	for _, issue := range issues[:shown] {
		lines = append(lines,
			fmt.Sprintf("%s **%s** in `%s:%d` _(%s)_",
				issue.Severity.Icon(), strings.ToUpper(string(issue.Severity)), issue.File, issue.Line, issue.Skill),
			"> "+strings.ReplaceAll(issue.Message, "\n", "\n> "),
			"",
		)
	}
	if more := len(issues) - shown; more > 0 {
		lines = append(lines, fmt.Sprintf("_...and %d more %s_", more, plural(more, "issue")), "")
	}
	return strings.Join(lines, "\n")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// cut truncates s to at most n bytes without splitting a UTF-8 sequence.
func cut(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// FormatInlineComment renders the body of an inline review comment.
func FormatInlineComment(issue Issue) string {
	return fmt.Sprintf("**[%s]** %s\n\n_Skill: %s_", strings.ToUpper(string(issue.Severity)), issue.Message, issue.Skill)
}
