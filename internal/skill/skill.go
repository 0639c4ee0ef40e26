// Package skill loads, matches and selects review skills: markdown rule
// documents scoped to changed files by glob patterns.
//
// A bundled set ships inside the binary. A repository may add skills or
// replace bundled ones (by stem) from an override directory laid out as either
//
//	<stem>.md
//	<stem>/SKILL.md
//	<stem>/references/*.md
package skill

import (
	"errors"
	"slices"
)

// MaxFileBytes is the largest skill or reference document that is loaded.
// Larger documents are skipped, never truncated.
const MaxFileBytes = 512 * 1024

// ReferenceDelimiter separates a skill's main content from each selected reference.
const ReferenceDelimiter = "\n\n---\n\n"

// ErrPathEscape is returned when the skills path resolves outside the workspace.
var ErrPathEscape = errors.New("skills path resolves outside the workspace")

// Skill is one rule document.
type Skill struct {
	// Stem is the stable identifier used for override matching.
	Stem string

	Name        string
	Description string
	Version     string

	// AppliesTo holds glob patterns. Empty or containing "*" means global.
	AppliesTo []string

	// Content is the body text with front matter stripped.
	Content string

	// Refs are deferred reference documents, in directory order.
	Refs []Reference
}

// Reference is a supplementary document loaded on demand by ResolveReferences.
type Reference struct {
	Filename string
	Content  string
}

// Global reports whether s applies to every file.
func (s Skill) Global() bool {
	return len(s.AppliesTo) == 0 || slices.Contains(s.AppliesTo, "*")
}

// Selectable reports whether the model may narrow s away. Skills without a
// description are always kept.
func (s Skill) Selectable() bool {
	return s.Description != ""
}

// Stems returns the stems of skills in order.
func Stems(skills []Skill) []string {
	stems := make([]string, len(skills))
	for i, s := range skills {
		stems[i] = s.Stem
	}
	return stems
}
