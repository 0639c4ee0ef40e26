package review

import "time"

// PullRequest is the subset of pull request metadata the pipeline uses.
type PullRequest struct {
	Number  int
	Title   string
	Author  string
	State   string
	HeadSHA string
	BaseSHA string
	HeadRef string
	BaseRef string
	HTMLURL string
}

// Comment is a comment on the pull request conversation thread.
type Comment struct {
	ID         int64
	Body       string
	Author     string
	AuthorType string
	CreatedAt  time.Time
}

// ReviewComment is an existing inline comment on the pull request diff.
type ReviewComment struct {
	ID       int64
	Path     string
	Position int
	Line     int
	Body     string
	Author   string
	CommitID string
}

// InlineComment is a new inline comment addressed by diff position.
type InlineComment struct {
	Path     string
	Position int
	Body     string
}
