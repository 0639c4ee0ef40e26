// Package trigger decides whether a workflow event should start a review.
//
// Two modes exist. "pr" reviews on pull request events. "comment" reviews
// when someone with enough repository permission posts the trigger phrase on
// a pull request conversation.
package trigger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v77/github"
)

const (
	ModePR      = "pr"
	ModeComment = "comment"
)

// Event is the part of a webhook payload the gate looks at.
type Event struct {
	Name   string
	Action string

	// PRNumber is zero when the event does not concern a pull request.
	PRNumber int

	CommentID   int64
	CommentBody string

	Actor     string
	ActorType string
}

// LoadEvent reads and parses the payload at path (GITHUB_EVENT_PATH).
func LoadEvent(name, path string) (*Event, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event payload: %w", err)
	}
	return ParseEvent(name, payload)
}

// ParseEvent parses a webhook payload. Event types other than pull requests
// and issue comments yield an Event with only Name set.
func ParseEvent(name string, payload []byte) (*Event, error) {
	e := &Event{Name: name}

	parsed, err := github.ParseWebHook(name, payload)
	if err != nil {
		// workflow_dispatch and friends have no PR context.
		if strings.Contains(err.Error(), "unknown X-Github-Event") {
			return e, nil
		}
		return nil, fmt.Errorf("parsing %s payload: %w", name, err)
	}

	switch ev := parsed.(type) {
	case *github.PullRequestEvent:
		e.Action = ev.GetAction()
		e.PRNumber = ev.GetPullRequest().GetNumber()
		if e.PRNumber == 0 {
			e.PRNumber = ev.GetNumber()
		}
		e.Actor, e.ActorType = ev.GetSender().GetLogin(), ev.GetSender().GetType()
	case *github.PullRequestTargetEvent:
		e.Action = ev.GetAction()
		e.PRNumber = ev.GetPullRequest().GetNumber()
		if e.PRNumber == 0 {
			e.PRNumber = ev.GetNumber()
		}
		e.Actor, e.ActorType = ev.GetSender().GetLogin(), ev.GetSender().GetType()
	case *github.IssueCommentEvent:
		e.Action = ev.GetAction()
		if issue := ev.GetIssue(); issue != nil && issue.IsPullRequest() {
			e.PRNumber = issue.GetNumber()
		}
		e.CommentID = ev.GetComment().GetID()
		e.CommentBody = ev.GetComment().GetBody()
		user := ev.GetComment().GetUser()
		if user == nil {
			user = ev.GetSender()
		}
		e.Actor, e.ActorType = user.GetLogin(), user.GetType()
	}

	return e, nil
}

// IsBot reports whether an account is an automation account.
func IsBot(login, accountType string) bool {
	return accountType == "Bot" || strings.HasSuffix(login, "[bot]")
}

var roleRanks = map[string]int{
	"none":     0,
	"read":     1,
	"triage":   2,
	"write":    3,
	"maintain": 4,
	"admin":    5,
}

// RoleRank orders repository roles. Unknown roles rank as "none".
func RoleRank(role string) int {
	return roleRanks[strings.ToLower(strings.TrimSpace(role))]
}

// ValidRole reports whether role is a known repository role.
func ValidRole(role string) bool {
	_, ok := roleRanks[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// PermissionLookup returns a user's repository role.
type PermissionLookup interface {
	GetPermissionLevel(ctx context.Context, user string) (string, error)
}

// Policy is the configured trigger gate.
type Policy struct {
	Mode        string
	Phrase      string
	MinimumRole string
}

// Decision explains the outcome of Evaluate.
type Decision struct {
	Run    bool
	Reason string
}

func skip(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether e should start a review. Permission is only looked
// up for comment triggers that pass every other check.
func (p Policy) Evaluate(ctx context.Context, e *Event, perms PermissionLookup) (Decision, error) {
	switch p.Mode {
	case ModePR, "":
		if e.Name != "pull_request" && e.Name != "pull_request_target" {
			return skip("event %q is not a pull request event", e.Name), nil
		}
		if e.Action == "closed" {
			return skip("pull request was closed"), nil
		}
		if e.PRNumber == 0 {
			return skip("event carries no pull request number"), nil
		}
		return Decision{Run: true, Reason: "pull request event"}, nil

	case ModeComment:
		return p.evaluateComment(ctx, e, perms)

	default:
		return Decision{}, fmt.Errorf("unknown trigger mode %q", p.Mode)
	}
}

func (p Policy) evaluateComment(ctx context.Context, e *Event, perms PermissionLookup) (Decision, error) {
	if e.Name != "issue_comment" {
		return skip("event %q is not a comment event", e.Name), nil
	}
	if e.Action != "" && e.Action != "created" {
		return skip("comment was %s, not created", e.Action), nil
	}
	if e.PRNumber == 0 {
		return skip("comment is not on a pull request"), nil
	}
	if p.Phrase != "" && !strings.Contains(strings.ToLower(e.CommentBody), strings.ToLower(p.Phrase)) {
		return skip("comment does not contain %q", p.Phrase), nil
	}
	if IsBot(e.Actor, e.ActorType) {
		return skip("comment author %s is a bot", e.Actor), nil
	}

	role, err := perms.GetPermissionLevel(ctx, e.Actor)
	if err != nil {
		return Decision{}, fmt.Errorf("checking permission for %s: %w", e.Actor, err)
	}
	minimum := p.MinimumRole
	if minimum == "" {
		minimum = "write"
	}
	if RoleRank(role) < RoleRank(minimum) {
		return skip("%s has %s access, %s required", e.Actor, role, minimum), nil
	}

	return Decision{Run: true, Reason: fmt.Sprintf("%s requested a review", e.Actor)}, nil
}
