// Package diff maps new-file line numbers to GitHub diff positions.
//
// GitHub's review comment API addresses a line by its "position": a 1-based
// line count into the file's patch text, where hunk header lines count too.
// Only added lines receive a mapping; a finding on any other line cannot be
// posted inline.
package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// hunkHeader matches "@@ -oldStart[,oldCount] +newStart[,newCount] @@".
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// PositionMap maps a new-file line number to its 1-based position in the patch.
type PositionMap map[int]int

// Lookup returns the diff position of line, reporting false when line is not
// an added line of the patch.
func (m PositionMap) Lookup(line int) (int, bool) {
	if m == nil || line <= 0 {
		return 0, false
	}
	pos, ok := m[line]
	return pos, ok
}

// ComputePositions scans a unified diff patch and records the diff position of
// every added line, keyed by its line number in the post-change file.
//
// The position counter advances on every line of the patch text, including
// hunk headers. A hunk header resets the new-file counter to newStart-1; the
// counters are never reset otherwise. A patch without hunks yields an empty map.
func ComputePositions(patch string) PositionMap {
	positions := make(PositionMap)
	if patch == "" {
		return positions
	}

	diffPosition := 0
	newLineNumber := 0

	for _, line := range strings.Split(patch, "\n") {
		diffPosition++

		if strings.HasPrefix(line, "@@") {
			if match := hunkHeader.FindStringSubmatch(line); match != nil {
				start, err := strconv.Atoi(match[1])
				if err == nil {
					newLineNumber = start - 1
				}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			newLineNumber++
			positions[newLineNumber] = diffPosition
		case strings.HasPrefix(line, "-"):
			// removed lines have no new-file line number
		default:
			newLineNumber++
		}
	}

	return positions
}

// ComputeAll builds a PositionMap for every file that carries a patch. Files
// without a patch (binary files, pure renames) get no entry.
func ComputeAll(patches map[string]string) map[string]PositionMap {
	maps := make(map[string]PositionMap, len(patches))
	for name, patch := range patches {
		if patch == "" {
			continue
		}
		maps[name] = ComputePositions(patch)
	}
	return maps
}
