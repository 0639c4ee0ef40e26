package skill

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
)

// Match returns the skills that apply to at least one of filenames, in their
// original order. Global skills are always included.
func Match(skills []Skill, filenames []string) []Skill {
	var matched []Skill
	for _, s := range skills {
		if s.Global() || matchesAny(s.AppliesTo, filenames) {
			matched = append(matched, s)
		}
	}
	return matched
}

func matchesAny(patterns, filenames []string) bool {
	for _, pattern := range patterns {
		for _, filename := range filenames {
			if MatchFile(pattern, filename) {
				return true
			}
		}
	}
	return false
}

// MatchFile reports whether filename matches pattern. A pattern without a
// slash is also tried against the basename, so "*.java" matches
// "src/main/java/frc/robot/Robot.java".
func MatchFile(pattern, filename string) bool {
	ok, err := doublestar.Match(pattern, filename)
	if err != nil {
		log.Warn("invalid applies-to pattern", "pattern", pattern, "error", err)
		return false
	}
	if ok {
		return true
	}
	if strings.Contains(pattern, "/") {
		return false
	}
	ok, _ = doublestar.Match(pattern, path.Base(filename))
	return ok
}
