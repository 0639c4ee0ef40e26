package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const prPayload = `{
	"action": "synchronize",
	"number": 42,
	"pull_request": {"number": 42, "head": {"sha": "abc"}},
	"sender": {"login": "student", "type": "User"}
}`

const commentPayload = `{
	"action": "created",
	"issue": {"number": 42, "pull_request": {"url": "https://api.github.com/repos/o/r/pulls/42"}},
	"comment": {"id": 9001, "body": "Could you /review this?", "user": {"login": "mentor", "type": "User"}},
	"sender": {"login": "mentor", "type": "User"}
}`

const issueCommentPayload = `{
	"action": "created",
	"issue": {"number": 5},
	"comment": {"id": 1, "body": "/review", "user": {"login": "mentor", "type": "User"}}
}`

type fakePerms map[string]string

func (f fakePerms) GetPermissionLevel(_ context.Context, user string) (string, error) {
	role, ok := f[user]
	if !ok {
		return "", errors.New("lookup failed")
	}
	return role, nil
}

func mustParse(t *testing.T, name, payload string) *Event {
	t.Helper()
	e, err := ParseEvent(name, []byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent(%s): %v", name, err)
	}
	return e
}

func TestParseEvent(t *testing.T) {
	pr := mustParse(t, "pull_request", prPayload)
	if pr.PRNumber != 42 || pr.Action != "synchronize" || pr.Actor != "student" {
		t.Errorf("pull_request event = %+v", pr)
	}

	c := mustParse(t, "issue_comment", commentPayload)
	if c.PRNumber != 42 || c.CommentID != 9001 || c.Actor != "mentor" || !strings.Contains(c.CommentBody, "/review") {
		t.Errorf("issue_comment event = %+v", c)
	}

	plain := mustParse(t, "issue_comment", issueCommentPayload)
	if plain.PRNumber != 0 {
		t.Errorf("comment on a plain issue should carry no PR number, got %d", plain.PRNumber)
	}

	other := mustParse(t, "made_up_event", `{}`)
	if other.Name != "made_up_event" || other.PRNumber != 0 {
		t.Errorf("unknown event = %+v", other)
	}
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	if _, err := ParseEvent("pull_request", []byte("{")); err == nil {
		t.Error("expected an error for a truncated payload")
	}
}

func TestLoadEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(prPayload), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := LoadEvent("pull_request", path)
	if err != nil {
		t.Fatalf("LoadEvent: %v", err)
	}
	if e.PRNumber != 42 {
		t.Errorf("PRNumber = %d, want 42", e.PRNumber)
	}

	if _, err := LoadEvent("pull_request", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing payload file")
	}
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		login, kind string
		want        bool
	}{
		{"github-actions[bot]", "Bot", true},
		{"dependabot[bot]", "User", true},
		{"renovate", "Bot", true},
		{"mentor", "User", false},
	}
	for _, tt := range tests {
		if got := IsBot(tt.login, tt.kind); got != tt.want {
			t.Errorf("IsBot(%q, %q) = %v, want %v", tt.login, tt.kind, got, tt.want)
		}
	}
}

func TestRoleRank(t *testing.T) {
	order := []string{"none", "read", "triage", "write", "maintain", "admin"}
	for i := 1; i < len(order); i++ {
		if RoleRank(order[i-1]) >= RoleRank(order[i]) {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
	if RoleRank("superuser") != 0 || ValidRole("superuser") {
		t.Error("unknown roles should rank as none and be invalid")
	}
	if !ValidRole("Admin") {
		t.Error("role names are case-insensitive")
	}
}

func TestPolicy_PRMode(t *testing.T) {
	p := Policy{Mode: ModePR}
	ctx := context.Background()

	tests := []struct {
		name  string
		event *Event
		want  bool
	}{
		{"pull_request", &Event{Name: "pull_request", Action: "opened", PRNumber: 1}, true},
		{"pull_request_target", &Event{Name: "pull_request_target", Action: "synchronize", PRNumber: 1}, true},
		{"closed", &Event{Name: "pull_request", Action: "closed", PRNumber: 1}, false},
		{"comment event", &Event{Name: "issue_comment", PRNumber: 1}, false},
		{"push", &Event{Name: "push"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Evaluate(ctx, tt.event, nil)
			if err != nil {
				t.Fatal(err)
			}
			if d.Run != tt.want {
				t.Errorf("Run = %v (%s), want %v", d.Run, d.Reason, tt.want)
			}
		})
	}
}

func TestPolicy_CommentMode(t *testing.T) {
	p := Policy{Mode: ModeComment, Phrase: "/review", MinimumRole: "write"}
	perms := fakePerms{"mentor": "admin", "student": "read", "triager": "triage", "maintainer": "maintain"}
	ctx := context.Background()

	comment := func(actor, kind, body string) *Event {
		return &Event{Name: "issue_comment", Action: "created", PRNumber: 42, CommentID: 1, CommentBody: body, Actor: actor, ActorType: kind}
	}

	tests := []struct {
		name  string
		event *Event
		want  bool
	}{
		{"admin with phrase", comment("mentor", "User", "please /review"), true},
		{"maintain with phrase", comment("maintainer", "User", "/REVIEW"), true},
		{"read access", comment("student", "User", "/review"), false},
		{"triage access", comment("triager", "User", "/review"), false},
		{"no phrase", comment("mentor", "User", "looks good"), false},
		{"bot", comment("frc-reviewer[bot]", "Bot", "/review"), false},
		{"edited", &Event{Name: "issue_comment", Action: "edited", PRNumber: 42, CommentBody: "/review", Actor: "mentor"}, false},
		{"plain issue", &Event{Name: "issue_comment", Action: "created", CommentBody: "/review", Actor: "mentor"}, false},
		{"pr event", &Event{Name: "pull_request", PRNumber: 42}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Evaluate(ctx, tt.event, perms)
			if err != nil {
				t.Fatal(err)
			}
			if d.Run != tt.want {
				t.Errorf("Run = %v (%s), want %v", d.Run, d.Reason, tt.want)
			}
		})
	}
}

func TestPolicy_PermissionLookupFails(t *testing.T) {
	p := Policy{Mode: ModeComment, Phrase: "/review"}
	e := &Event{Name: "issue_comment", Action: "created", PRNumber: 1, CommentBody: "/review", Actor: "ghost"}

	if _, err := p.Evaluate(context.Background(), e, fakePerms{}); err == nil {
		t.Error("expected the lookup error to propagate")
	}
}

func TestPolicy_UnknownMode(t *testing.T) {
	if _, err := (Policy{Mode: "cron"}).Evaluate(context.Background(), &Event{}, nil); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}
