// Package state records which commit was last reviewed on a pull request.
//
// The record travels inside the summary comment itself as an HTML comment,
// so no storage outside the pull request conversation is needed:
//
//	<!-- frc-reviewer:state {"sha":"<40 hex>","timestamp":"<ISO-8601>"} -->
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// Marker is the sentinel token that prefixes the encoded state.
	Marker = "frc-reviewer:state"

	// MaxBodySize bounds the comment bodies Decode is willing to scan.
	MaxBodySize = 10_000

	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	maxTimestampLen = 64
)

// ErrInvalidState is returned when a State cannot be encoded.
var ErrInvalidState = errors.New("invalid review state")

var (
	shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

	// Matches only the exact shape Encode writes. Character classes keep the
	// match bounded on adversarial comment bodies.
	stateComment = regexp.MustCompile(
		`<!-- ` + regexp.QuoteMeta(Marker) +
			` (\{"sha":"[0-9a-f]{40}","timestamp":"[^"]{1,64}"\}) -->`,
	)
)

// State is the incremental-review marker.
type State struct {
	SHA       string `json:"sha"`
	Timestamp string `json:"timestamp"`
}

// New builds a State for sha stamped with at.
func New(sha string, at time.Time) State {
	return State{
		SHA:       strings.ToLower(sha),
		Timestamp: at.UTC().Format(TimestampLayout),
	}
}

// Time parses the timestamp, returning the zero time when it is not RFC 3339.
func (s State) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, s.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Validate reports whether s can round-trip through Encode and Decode.
func (s State) Validate() error {
	if !shaPattern.MatchString(s.SHA) {
		return fmt.Errorf("%w: sha %q is not 40 lowercase hex characters", ErrInvalidState, s.SHA)
	}
	if s.Timestamp == "" || len(s.Timestamp) > maxTimestampLen || strings.ContainsAny(s.Timestamp, `"\`) {
		return fmt.Errorf("%w: timestamp %q", ErrInvalidState, s.Timestamp)
	}
	return nil
}

// Encode renders s as a hidden marker suitable for appending to a comment body.
func Encode(s State) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling review state: %w", err)
	}
	return fmt.Sprintf("<!-- %s %s -->", Marker, data), nil
}

// Decode extracts the state marker from a comment body. When the body holds
// several markers the last one wins, since the reviewer appends its own marker
// after any quoted text. Bodies longer than MaxBodySize are rejected without
// being scanned.
func Decode(body string) (State, bool) {
	if len(body) > MaxBodySize {
		return State{}, false
	}

	matches := stateComment.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return State{}, false
	}

	var s State
	if err := json.Unmarshal([]byte(matches[len(matches)-1][1]), &s); err != nil {
		return State{}, false
	}
	return s, true
}

// FindLast decodes every body in order and returns the last state found.
// Position decides, not timestamp: a later comment always wins.
func FindLast(bodies []string) (State, bool) {
	var (
		last  State
		found bool
	)
	for _, body := range bodies {
		if body == "" {
			continue
		}
		if s, ok := Decode(body); ok {
			last, found = s, true
		}
	}
	return last, found
}
