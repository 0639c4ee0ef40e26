// Package github implements the pull request platform over the GitHub REST
// API using go-github.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v77/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/review"
)

// ErrNotFound is returned when a file or resource does not exist at the requested ref.
var ErrNotFound = errors.New("not found")

const perPage = 100

// Client talks to a single repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient creates a client for repository ("owner/repo") with the transport stack:
//  1. httpcache (ETag-based conditional requests, so refetching file content is cheap)
//  2. go-github-ratelimit (sleeps through secondary rate limits)
//  3. oauth2 (token authentication)
func NewClient(token, repository string) (*Client, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimited := github_ratelimit.NewClient(cacheTransport)
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   rateLimited.Transport,
		},
	}

	return &Client{
		gh:    github.NewClient(httpClient),
		owner: owner,
		repo:  repo,
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repository string) (*Client, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	client := github.NewClient(httpClient)
	client.BaseURL = u

	return &Client{gh: client, owner: owner, repo: repo}, nil
}

// SplitRepository splits "owner/repo".
func SplitRepository(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", repository)
	}
	return owner, repo, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// GetPullRequest fetches pull request metadata.
func (c *Client) GetPullRequest(ctx context.Context, number int) (*review.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, handleAPIError(err, fmt.Sprintf("failed to get pull request #%d", number))
	}
	return ParsePullRequest(pr), nil
}

// ListChangedFiles fetches every file in the pull request, page by page.
func (c *Client) ListChangedFiles(ctx context.Context, number int) ([]review.ChangedFile, error) {
	var files []review.ChangedFile

	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.gh.PullRequests.ListFiles(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, handleAPIError(err, "failed to list pull request files")
		}

		for _, f := range page {
			if f != nil {
				files = append(files, ParseCommitFile(f))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// GetFileContent returns the decoded content of path at ref. Directories,
// submodules and missing files yield ErrNotFound.
func (c *Client) GetFileContent(ctx context.Context, ref, path string) (string, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s@%s: %w", path, ref, ErrNotFound)
		}
		return "", handleAPIError(err, "failed to get file content")
	}
	if file == nil || file.GetType() != "file" {
		return "", fmt.Errorf("%s@%s is not a file: %w", path, ref, ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, nil
}

// ListIssueComments fetches every conversation comment in retrieval order
// (ascending by creation).
func (c *Client) ListIssueComments(ctx context.Context, number int) ([]review.Comment, error) {
	var comments []review.Comment

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		page, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, handleAPIError(err, "failed to list comments")
		}

		for _, comment := range page {
			if comment != nil {
				comments = append(comments, ParseComment(comment))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// ListReviewComments fetches every inline review comment on the pull request.
func (c *Client) ListReviewComments(ctx context.Context, number int) ([]review.ReviewComment, error) {
	var comments []review.ReviewComment

	opts := &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		page, resp, err := c.gh.PullRequests.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, handleAPIError(err, "failed to list review comments")
		}

		for _, comment := range page {
			if comment != nil {
				comments = append(comments, ParseReviewComment(comment))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// CreateComment posts a conversation comment on the pull request.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return handleAPIError(err, "failed to post comment")
	}
	return nil
}

// CreateReview posts comments as a single COMMENT review pinned to commitID.
func (c *Client) CreateReview(ctx context.Context, number int, commitID string, comments []review.InlineComment) error {
	if len(comments) == 0 {
		return nil
	}

	drafts := make([]*github.DraftReviewComment, 0, len(comments))
	for _, comment := range comments {
		drafts = append(drafts, &github.DraftReviewComment{
			Path:     github.Ptr(comment.Path),
			Position: github.Ptr(comment.Position),
			Body:     github.Ptr(comment.Body),
		})
	}

	req := &github.PullRequestReviewRequest{
		Event:    github.Ptr("COMMENT"),
		Comments: drafts,
	}
	if commitID != "" {
		req.CommitID = github.Ptr(commitID)
	}

	if _, _, err := c.gh.PullRequests.CreateReview(ctx, c.owner, c.repo, number, req); err != nil {
		return handleAPIError(err, "failed to post review")
	}
	return nil
}

// CompareCommits returns the names of files changed between base and head.
func (c *Client) CompareCommits(ctx context.Context, base, head string) ([]string, error) {
	var names []string

	opts := &github.ListOptions{PerPage: perPage}
	for {
		cmp, resp, err := c.gh.Repositories.CompareCommits(ctx, c.owner, c.repo, base, head, opts)
		if err != nil {
			return nil, handleAPIError(err, fmt.Sprintf("failed to compare %s...%s", base, head))
		}

		for _, f := range cmp.Files {
			if f != nil {
				names = append(names, f.GetFilename())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// GetPermissionLevel returns the repository permission of user: one of
// "admin", "maintain", "write", "triage", "read" or "none".
func (c *Client) GetPermissionLevel(ctx context.Context, user string) (string, error) {
	level, _, err := c.gh.Repositories.GetPermissionLevel(ctx, c.owner, c.repo, user)
	if err != nil {
		if isNotFound(err) {
			return "none", nil
		}
		return "", handleAPIError(err, "failed to get permission level")
	}

	// role_name distinguishes maintain and triage, which permission folds
	// into write and read.
	if role := level.GetRoleName(); role != "" {
		return role, nil
	}
	return level.GetPermission(), nil
}

// AddReaction reacts to a conversation comment, e.g. with "eyes" or "rocket".
func (c *Client) AddReaction(ctx context.Context, commentID int64, content string) error {
	_, _, err := c.gh.Reactions.CreateIssueCommentReaction(ctx, c.owner, c.repo, commentID, content)
	if err != nil {
		return handleAPIError(err, "failed to add reaction")
	}
	return nil
}

// ParsePullRequest converts a go-github PullRequest.
func ParsePullRequest(ghPR *github.PullRequest) *review.PullRequest {
	pr := &review.PullRequest{
		Number:  ghPR.GetNumber(),
		Title:   ghPR.GetTitle(),
		State:   ghPR.GetState(),
		HTMLURL: ghPR.GetHTMLURL(),
	}

	if user := ghPR.GetUser(); user != nil {
		pr.Author = user.GetLogin()
	}
	if head := ghPR.GetHead(); head != nil {
		pr.HeadSHA = head.GetSHA()
		pr.HeadRef = head.GetRef()
	}
	if base := ghPR.GetBase(); base != nil {
		pr.BaseSHA = base.GetSHA()
		pr.BaseRef = base.GetRef()
	}

	return pr
}

// ParseCommitFile converts a go-github CommitFile.
func ParseCommitFile(f *github.CommitFile) review.ChangedFile {
	return review.ChangedFile{
		Filename:  f.GetFilename(),
		Status:    f.GetStatus(),
		Patch:     f.GetPatch(),
		Additions: f.GetAdditions(),
		Deletions: f.GetDeletions(),
	}
}

// ParseComment converts a go-github IssueComment.
func ParseComment(ghComment *github.IssueComment) review.Comment {
	comment := review.Comment{
		ID:        ghComment.GetID(),
		Body:      ghComment.GetBody(),
		CreatedAt: ghComment.GetCreatedAt().Time,
	}

	if user := ghComment.GetUser(); user != nil {
		comment.Author = user.GetLogin()
		comment.AuthorType = user.GetType()
	}

	return comment
}

// ParseReviewComment converts a go-github PullRequestComment.
func ParseReviewComment(ghComment *github.PullRequestComment) review.ReviewComment {
	rc := review.ReviewComment{
		ID:       ghComment.GetID(),
		Path:     ghComment.GetPath(),
		Position: ghComment.GetPosition(),
		Line:     ghComment.GetLine(),
		Body:     ghComment.GetBody(),
		CommitID: ghComment.GetCommitID(),
	}

	if user := ghComment.GetUser(); user != nil {
		rc.Author = user.GetLogin()
	}

	return rc
}

func isNotFound(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
}

// handleAPIError wraps API errors with context and detects rate limiting
func handleAPIError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		log.Warn("GitHub primary rate limit reached", "reset", rateLimitErr.Rate.Reset.Time)
		return fmt.Errorf("%s: hit primary rate limit (used %d of %d, resets at %v): %w",
			msg, rateLimitErr.Rate.Used, rateLimitErr.Rate.Limit, rateLimitErr.Rate.Reset.Time, err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retryAfter := abuseErr.GetRetryAfter()
		return fmt.Errorf("%s: hit secondary rate limit (retry after %v): %w",
			msg, retryAfter, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
