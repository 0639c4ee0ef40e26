// Package review holds the review data model and the three model passes:
// Summarize, Review and Verify. It also renders the comments posted back to
// the pull request.
package review

import (
	"encoding/json"
	"strings"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/skill"
)

// ChangedFile is one file touched by the pull request.
type ChangedFile struct {
	Filename string
	Status   string

	// Patch is the unified diff for the file. Empty for binary files and
	// pure renames.
	Patch string

	Additions int
	Deletions int
}

// Filenames returns the names of files in order.
func Filenames(files []ChangedFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return names
}

// Severity is the closed set of issue severities.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

var severityAliases = map[string]Severity{
	"critical": SeverityCritical,
	"blocker":  SeverityCritical,
	"error":    SeverityCritical,
	"high":     SeverityCritical,
	"severe":   SeverityCritical,
	"fatal":    SeverityCritical,

	"warning":  SeverityWarning,
	"warn":     SeverityWarning,
	"medium":   SeverityWarning,
	"moderate": SeverityWarning,

	"suggestion": SeveritySuggestion,
	"info":       SeveritySuggestion,
	"low":        SeveritySuggestion,
	"minor":      SeveritySuggestion,
	"nit":        SeveritySuggestion,
	"nitpick":    SeveritySuggestion,
	"style":      SeveritySuggestion,
	"note":       SeveritySuggestion,
}

// NormalizeSeverity maps free-form model output onto the closed set.
// Unknown values become SeverityWarning: the middle severity neither hides a
// finding nor fails a build on a guess.
func NormalizeSeverity(s string) Severity {
	key := strings.ToLower(strings.TrimSpace(s))
	if sev, ok := severityAliases[key]; ok {
		return sev
	}
	log.Warn("unknown issue severity, treating as warning", "severity", s)
	return SeverityWarning
}

// UnmarshalJSON accepts any spelling and stores its normalized severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NormalizeSeverity(raw)
	return nil
}

// Icon is the emoji used for s in the summary comment.
func (s Severity) Icon() string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}

// Issue is a candidate or confirmed finding. Line uses new-file numbering.
type Issue struct {
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Severity  Severity `json:"severity"`
	Skill     string   `json:"skill"`
	Reasoning string   `json:"reasoning"`
	Message   string   `json:"message"`
}

// PRSummary is the output of the summarize pass.
type PRSummary struct {
	Goal  string        `json:"prGoal"`
	Files []FileSummary `json:"files"`
}

// FileSummary is the summarize pass's description of one changed file.
type FileSummary struct {
	Filename                   string `json:"filename"`
	Summary                    string `json:"summary"`
	ArchitecturallySignificant bool   `json:"architecturallySignificant"`
}

// Significant returns the files flagged as architecturally significant.
func (s PRSummary) Significant() []string {
	var names []string
	for _, f := range s.Files {
		if f.ArchitecturallySignificant {
			names = append(names, f.Filename)
		}
	}
	return names
}

// Brief converts the summary to the form the skill selector consumes.
func (s PRSummary) Brief() skill.Brief {
	b := skill.Brief{Goal: s.Goal}
	for _, f := range s.Files {
		b.Files = append(b.Files, skill.BriefFile{Filename: f.Filename, Summary: f.Summary})
	}
	return b
}

// Counts holds issue totals per severity.
type Counts struct {
	Critical    int
	Warnings    int
	Suggestions int
}

// CountIssues tallies issues by severity.
func CountIssues(issues []Issue) Counts {
	var c Counts
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityWarning:
			c.Warnings++
		case SeveritySuggestion:
			c.Suggestions++
		}
	}
	return c
}
