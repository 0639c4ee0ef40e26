package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/frc-reviewer/internal/config"
	"github.com/Yates-Labs/frc-reviewer/internal/git"
	"github.com/Yates-Labs/frc-reviewer/internal/github"
	"github.com/Yates-Labs/frc-reviewer/internal/llm"
	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/orchestrator"
	"github.com/Yates-Labs/frc-reviewer/internal/skill"
	"github.com/Yates-Labs/frc-reviewer/internal/trigger"
)

var (
	_ orchestrator.Platform       = (*github.Client)(nil)
	_ orchestrator.CommitComparer = (*git.Comparer)(nil)
	_ trigger.PermissionLookup    = (*github.Client)(nil)
)

var reviewFlags struct {
	prNumber          int
	dryRun            bool
	failOnCritical    bool
	gateway           string
	model             string
	fastModel         string
	skillsPath        string
	workspace         string
	compareMode       string
	skillSelection    bool
	verifyConcurrency int
	fetchConcurrency  int
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a pull request and post the findings",
	Long: `Run the full review pipeline on a pull request:

1. Resolve scope (only files changed since the last review, when one exists)
2. Summarize the changes
3. Review the diff against the matching skills
4. Verify every finding independently
5. Post a summary comment and inline comments

Settings come from GitHub Actions inputs (INPUT_*), environment variables and
a .env file; flags override them.

Required:
  GITHUB_TOKEN / INPUT_GITHUB-TOKEN           - token with pull request write access
  FRC_REVIEWER_API_KEY / INPUT_API-KEY        - model gateway API key
  GITHUB_REPOSITORY                           - owner/repo

Examples:
  frc-reviewer review                           # inside a GitHub Actions workflow
  frc-reviewer review --pr 42 --dry-run
  frc-reviewer review --pr 42 --gateway anthropic --model claude-sonnet-4-5`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	f := reviewCmd.Flags()
	f.IntVar(&reviewFlags.prNumber, "pr", 0, "Pull request number (overrides the event payload)")
	f.BoolVar(&reviewFlags.dryRun, "dry-run", false, "Run every stage but print the output instead of posting it")
	f.BoolVar(&reviewFlags.failOnCritical, "fail-on-critical", false, "Exit non-zero when critical issues are confirmed")
	f.StringVar(&reviewFlags.gateway, "gateway", "", "Model gateway: openai, digitalocean, vercel, anthropic")
	f.StringVar(&reviewFlags.model, "model", "", "Model used for review and verification")
	f.StringVar(&reviewFlags.fastModel, "fast-model", "", "Cheaper model for summarization and skill selection")
	f.StringVar(&reviewFlags.skillsPath, "skills-path", "", "Directory of repository-local skills")
	f.StringVar(&reviewFlags.workspace, "workspace", "", "Repository checkout root (default: GITHUB_WORKSPACE or current directory)")
	f.StringVar(&reviewFlags.compareMode, "compare-mode", "", "How to compare commits for incremental review: api or local")
	f.BoolVar(&reviewFlags.skillSelection, "skill-selection", true, "Let the model narrow skills and pick references")
	f.IntVar(&reviewFlags.verifyConcurrency, "verify-concurrency", 0, "Maximum parallel verification calls")
	f.IntVar(&reviewFlags.fetchConcurrency, "fetch-concurrency", 0, "Maximum parallel file content fetches")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyReviewFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logConfig := log.DefaultConfig()
	logConfig.Level = log.ParseLevel(cfg.LogLevel)
	log.Init(logConfig)
	if logConfig.Annotations {
		cfg.Mask(os.Stdout)
	}

	client, err := github.NewClient(cfg.GitHubToken, cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	log.Debug("GitHub client ready", "repository", client.Repository())

	// Step 1: Decide whether this event should run a review
	number := cfg.PRNumber
	var event *trigger.Event
	if cfg.EventPath != "" {
		event, err = trigger.LoadEvent(cfg.EventName, cfg.EventPath)
		if err != nil {
			return err
		}
	}
	if number == 0 {
		if event == nil {
			return orchestrator.ErrNoPullRequest
		}
		policy := trigger.Policy{Mode: cfg.Trigger, Phrase: cfg.TriggerPhrase, MinimumRole: cfg.MinimumRole}
		decision, err := policy.Evaluate(ctx, event, client)
		if err != nil {
			return err
		}
		if !decision.Run {
			log.Info("skipping review", "reason", decision.Reason)
			return nil
		}
		log.Info("review triggered", "reason", decision.Reason)
		number = event.PRNumber
	}
	if number == 0 {
		return orchestrator.ErrNoPullRequest
	}

	// Step 2: Load skills before any model call so a bad skills path fails fast
	skills, err := skill.Load(cfg.Workspace, cfg.SkillsPath)
	if err != nil {
		return fmt.Errorf("failed to load skills: %w", err)
	}
	log.Info("skills loaded", "count", len(skills))

	// Step 3: Build the pipeline
	model, err := llm.New(cfg.ModelConfig(""))
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}
	opts := []orchestrator.Option{}
	if cfg.FastModel != "" {
		fast, err := llm.New(cfg.ModelConfig(cfg.SummaryModel()))
		if err != nil {
			return fmt.Errorf("failed to create fast model: %w", err)
		}
		opts = append(opts, orchestrator.WithFastModel(fast))
	}
	if cfg.CompareMode == config.CompareLocal {
		if comparer, err := localComparer(cfg.Workspace); err != nil {
			log.Warn("local comparison unavailable, using the GitHub API", "error", err)
		} else {
			opts = append(opts, orchestrator.WithComparer(comparer))
		}
	}

	pipeline, err := orchestrator.New(client, model, skills, orchestrator.Config{
		SkillSelection:    cfg.SkillSelection,
		FailOnCritical:    cfg.FailOnCritical,
		DryRun:            cfg.DryRun,
		FetchConcurrency:  cfg.FetchConcurrency,
		VerifyConcurrency: cfg.VerifyConcurrency,
	}, opts...)
	if err != nil {
		return err
	}

	// Step 4: Run it
	commentTriggered := event != nil && event.CommentID != 0 && !cfg.DryRun
	if commentTriggered {
		react(ctx, client, event.CommentID, "eyes")
	}

	result, err := pipeline.Run(ctx, number)
	if result != nil && cfg.DryRun {
		printDryRun(cmd, result)
	}
	if commentTriggered && (err == nil || errors.Is(err, orchestrator.ErrCriticalIssues)) {
		react(ctx, client, event.CommentID, "rocket")
	}
	if err != nil {
		return err
	}

	if result.SummaryBody == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No files to review")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Reviewed %d files: %d critical, %d warnings, %d suggestions (%d inline comments)\n",
		len(result.Scope), result.Counts.Critical, result.Counts.Warnings, result.Counts.Suggestions, len(result.Posted))
	return nil
}

// applyReviewFlags overrides cfg with the flags the user actually set.
func applyReviewFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("pr") {
		cfg.PRNumber = reviewFlags.prNumber
	}
	if f.Changed("dry-run") {
		cfg.DryRun = reviewFlags.dryRun
	}
	if f.Changed("fail-on-critical") {
		cfg.FailOnCritical = reviewFlags.failOnCritical
	}
	if f.Changed("gateway") {
		cfg.Gateway = reviewFlags.gateway
	}
	if f.Changed("model") {
		cfg.Model = reviewFlags.model
	}
	if f.Changed("fast-model") {
		cfg.FastModel = reviewFlags.fastModel
	}
	if f.Changed("skills-path") {
		cfg.SkillsPath = reviewFlags.skillsPath
	}
	if f.Changed("workspace") {
		cfg.Workspace = reviewFlags.workspace
	}
	if f.Changed("compare-mode") {
		cfg.CompareMode = reviewFlags.compareMode
	}
	if f.Changed("skill-selection") {
		cfg.SkillSelection = reviewFlags.skillSelection
	}
	if f.Changed("verify-concurrency") {
		cfg.VerifyConcurrency = reviewFlags.verifyConcurrency
	}
	if f.Changed("fetch-concurrency") {
		cfg.FetchConcurrency = reviewFlags.fetchConcurrency
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

func localComparer(workspace string) (*git.Comparer, error) {
	if workspace == "" {
		workspace = "."
	}
	return git.OpenRepository(workspace)
}

// react adds a reaction to the triggering comment. Failures are only logged.
func react(ctx context.Context, client *github.Client, commentID int64, content string) {
	if err := client.AddReaction(ctx, commentID, content); err != nil {
		log.Warn("could not react to trigger comment", "reaction", content, "error", err)
	}
}

func printDryRun(cmd *cobra.Command, result *orchestrator.Result) {
	out := cmd.OutOrStdout()
	if result.SummaryBody == "" {
		return
	}

	fmt.Fprintln(out, result.SummaryBody)
	fmt.Fprintln(out)

	if len(result.Inline) == 0 {
		return
	}
	rows := make([][]string, len(result.Inline))
	for i, c := range result.Inline {
		rows[i] = []string{c.Path, fmt.Sprintf("%d", c.Position), c.Body}
	}
	printTable(out, []column{
		{title: "FILE", width: 40, color: nameColor},
		{title: "POSITION", width: 10, color: numberColor, right: true},
		{title: "COMMENT", width: 60, color: textColor},
	}, rows)
	printSummary(out, fmt.Sprintf("Total: %d inline comments, %d dropped (line not in diff)", len(result.Inline), result.Dropped))
}
