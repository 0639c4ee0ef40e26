package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yates-Labs/frc-reviewer/internal/llm"
	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/review"
	"github.com/Yates-Labs/frc-reviewer/internal/skill"
)

var (
	// ErrNoPullRequest is returned when no pull request number is available.
	ErrNoPullRequest = errors.New("no pull request number")

	// ErrCriticalIssues is returned alongside a complete Result when the
	// fail-on-critical policy is enabled and critical issues were confirmed.
	ErrCriticalIssues = errors.New("critical issues found")
)

// Platform is the hosting platform the pipeline reads from and posts to.
type Platform interface {
	GetPullRequest(ctx context.Context, number int) (*review.PullRequest, error)
	ListChangedFiles(ctx context.Context, number int) ([]review.ChangedFile, error)
	GetFileContent(ctx context.Context, ref, path string) (string, error)
	ListIssueComments(ctx context.Context, number int) ([]review.Comment, error)
	ListReviewComments(ctx context.Context, number int) ([]review.ReviewComment, error)
	CreateComment(ctx context.Context, number int, body string) error
	CreateReview(ctx context.Context, number int, commitID string, comments []review.InlineComment) error
	CommitComparer
}

// CommitComparer lists the files changed between two commits.
type CommitComparer interface {
	CompareCommits(ctx context.Context, base, head string) ([]string, error)
}

// Config controls a pipeline run.
type Config struct {
	// SkillSelection enables the model-assisted skill and reference selection.
	SkillSelection bool

	// FailOnCritical makes Run return ErrCriticalIssues when critical issues are confirmed.
	FailOnCritical bool

	// DryRun runs every stage but posts nothing.
	DryRun bool

	// FetchConcurrency bounds parallel file content fetches (<= 0 is unbounded).
	FetchConcurrency int

	// VerifyConcurrency bounds parallel verification calls (<= 0 is unbounded).
	VerifyConcurrency int
}

// DefaultConfig returns the settings used by the review command.
func DefaultConfig() Config {
	return Config{
		SkillSelection:    true,
		FetchConcurrency:  8,
		VerifyConcurrency: 8,
	}
}

// Pipeline reviews one pull request per Run.
type Pipeline struct {
	config    Config
	platform  Platform
	comparer  CommitComparer
	model     llm.Model
	fastModel llm.Model
	skills    []skill.Skill
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFastModel sets the model used for summarization and skill selection.
func WithFastModel(m llm.Model) Option {
	return func(p *Pipeline) { p.fastModel = m }
}

// WithComparer replaces the platform's commit comparison, e.g. with a local clone.
func WithComparer(c CommitComparer) Option {
	return func(p *Pipeline) { p.comparer = c }
}

// WithClock overrides the time recorded in the review state marker.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. skills is the full loaded skill set; matching
// against the changed files happens per run.
func New(platform Platform, model llm.Model, skills []skill.Skill, config Config, opts ...Option) (*Pipeline, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform cannot be nil")
	}
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}

	p := &Pipeline{
		config:   config,
		platform: platform,
		comparer: platform,
		model:    model,
		skills:   skills,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fastModel == nil {
		p.fastModel = model
	}
	if p.comparer == nil {
		p.comparer = platform
	}
	return p, nil
}

// Result describes what a run produced.
type Result struct {
	PullRequest *review.PullRequest

	// Scope is the set of files reviewed this run.
	Scope []review.ChangedFile

	// Incremental is true when Scope was narrowed by a prior review state.
	Incremental bool

	Summary   review.PRSummary
	Skills    []skill.Skill
	Candidate []review.Issue
	Confirmed []review.Issue
	Counts    review.Counts

	// SummaryBody is the summary comment, including the state marker.
	// Empty when the scope was empty and nothing was posted.
	SummaryBody string

	// Inline holds the comments resolved to diff positions, before de-duplication.
	Inline []review.InlineComment

	// Posted holds the inline comments actually sent in the review.
	Posted []review.InlineComment

	// Dropped counts confirmed issues whose line had no diff position.
	Dropped int
}

// Run executes ScopeResolution, Summarize, Review, ContentBackfill, Verify
// and Publish for pull request number.
func (p *Pipeline) Run(ctx context.Context, number int) (*Result, error) {
	if number <= 0 {
		return nil, ErrNoPullRequest
	}

	pr, err := p.platform.GetPullRequest(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}
	result := &Result{PullRequest: pr}
	log.Info("reviewing pull request", "number", number, "head", pr.HeadSHA)

	// Stage 1: ScopeResolution
	scope, incremental, err := p.resolveScope(ctx, pr)
	if err != nil {
		return nil, err
	}
	result.Scope = scope
	result.Incremental = incremental
	if len(scope) == 0 {
		log.Info("no files in review scope, nothing to do")
		return result, nil
	}
	log.Info("review scope resolved", "files", len(scope), "incremental", incremental)

	// Stage 2: Summarize
	summary, err := review.Summarize(ctx, p.fastModel, scope)
	if err != nil {
		return nil, err
	}
	result.Summary = summary

	// Stage 3: Review
	skills, err := p.applicableSkills(ctx, summary, review.Filenames(scope))
	if err != nil {
		return nil, err
	}
	result.Skills = skills
	log.Info("skills applied", "skills", skill.Stems(skills))

	contents := newContentStore()
	p.fetchContents(ctx, pr.HeadSHA, summary.Significant(), contents)

	candidates, err := review.Review(ctx, p.model, review.Input{
		Summary:  summary,
		Files:    scope,
		Skills:   skills,
		Contents: contents.snapshot(),
	})
	if err != nil {
		return nil, err
	}
	result.Candidate = candidates
	log.Info("review pass complete", "candidates", len(candidates))

	// Stage 4: ContentBackfill
	p.fetchContents(ctx, pr.HeadSHA, contents.missing(issueFiles(candidates)), contents)

	// Stage 5: Verify
	confirmed, err := review.Verify(ctx, p.model, candidates, contents.snapshot(), p.config.VerifyConcurrency)
	if err != nil {
		return nil, err
	}
	result.Confirmed = confirmed
	result.Counts = review.CountIssues(confirmed)
	log.Info("verify pass complete", "confirmed", len(confirmed), "rejected", len(candidates)-len(confirmed))

	// Stage 6: Publish
	if err := p.publish(ctx, pr, scope, result); err != nil {
		return result, err
	}

	if p.config.FailOnCritical && result.Counts.Critical > 0 {
		return result, fmt.Errorf("%w: %d critical", ErrCriticalIssues, result.Counts.Critical)
	}
	return result, nil
}

// applicableSkills matches skills to the scope and, when enabled, narrows
// them with the model. References are only inlined when the model picks them.
func (p *Pipeline) applicableSkills(ctx context.Context, summary review.PRSummary, filenames []string) ([]skill.Skill, error) {
	matched := skill.Match(p.skills, filenames)

	if !p.config.SkillSelection {
		inlined := make([]skill.Skill, len(matched))
		for i, s := range matched {
			inlined[i] = skill.Inline(s, nil)
		}
		return inlined, nil
	}

	brief := summary.Brief()
	selected, err := skill.Select(ctx, p.fastModel, brief, matched)
	if err != nil {
		return nil, err
	}
	return skill.ResolveReferences(ctx, p.fastModel, brief, selected)
}

func issueFiles(issues []review.Issue) []string {
	seen := make(map[string]bool)
	var files []string
	for _, i := range issues {
		if !seen[i.File] {
			seen[i.File] = true
			files = append(files, i.File)
		}
	}
	return files
}
