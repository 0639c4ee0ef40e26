// Package config loads reviewer settings from GitHub Actions inputs and
// environment variables.
//
// An action input "fail-on-critical" arrives as INPUT_FAIL-ON-CRITICAL; the
// underscore spelling INPUT_FAIL_ON_CRITICAL is accepted too so the same
// settings can come from a plain shell or a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-githubactions"

	"github.com/Yates-Labs/frc-reviewer/internal/llm"
	"github.com/Yates-Labs/frc-reviewer/internal/trigger"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	CompareAPI   = "api"
	CompareLocal = "local"
)

type Config struct {
	GitHubToken string
	APIKey      string

	Gateway   string
	Model     string
	FastModel string

	SkillsPath     string
	Workspace      string
	SkillSelection bool

	FailOnCritical bool

	Trigger       string
	TriggerPhrase string
	MinimumRole   string

	Repository string
	EventName  string
	EventPath  string
	PRNumber   int

	CompareMode string

	ModelTimeout      time.Duration
	VerifyConcurrency int
	FetchConcurrency  int

	DryRun   bool
	LogLevel string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Gateway:           llm.GatewayOpenAI,
		Model:             "gpt-4o",
		SkillsPath:        ".github/frc-skills",
		SkillSelection:    true,
		Trigger:           trigger.ModePR,
		TriggerPhrase:     "/review",
		MinimumRole:       "write",
		CompareMode:       CompareAPI,
		ModelTimeout:      5 * time.Minute,
		VerifyConcurrency: 8,
		FetchConcurrency:  8,
		LogLevel:          "info",
	}
}

// Lookup reads one environment variable.
type Lookup func(key string) (string, bool)

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from Default overlaid with lookup. Malformed
// booleans, integers and durations are errors; missing values are not.
func FromEnv(lookup Lookup) (Config, error) {
	cfg := Default()
	r := reader{
		lookup: lookup,
		action: githubactions.New(githubactions.WithGetenv(func(key string) string {
			v, _ := lookup(key)
			return v
		})),
	}

	r.str(&cfg.GitHubToken, "github-token", "GITHUB_TOKEN")
	r.str(&cfg.APIKey, "api-key", "FRC_REVIEWER_API_KEY")
	r.str(&cfg.Gateway, "gateway", "")
	r.str(&cfg.Model, "model", "")
	r.str(&cfg.FastModel, "fast-model", "")
	r.str(&cfg.SkillsPath, "skills-path", "")
	r.str(&cfg.Workspace, "", "GITHUB_WORKSPACE")
	r.boolean(&cfg.SkillSelection, "skill-selection")
	r.boolean(&cfg.FailOnCritical, "fail-on-critical")
	r.str(&cfg.Trigger, "trigger", "")
	r.str(&cfg.TriggerPhrase, "trigger-phrase", "")
	r.str(&cfg.MinimumRole, "minimum-role", "")
	r.str(&cfg.Repository, "", "GITHUB_REPOSITORY")
	r.str(&cfg.EventName, "", "GITHUB_EVENT_NAME")
	r.str(&cfg.EventPath, "", "GITHUB_EVENT_PATH")
	r.integer(&cfg.PRNumber, "pr-number")
	r.str(&cfg.CompareMode, "compare-mode", "")
	r.duration(&cfg.ModelTimeout, "model-timeout")
	r.integer(&cfg.VerifyConcurrency, "verify-concurrency")
	r.integer(&cfg.FetchConcurrency, "fetch-concurrency")
	r.boolean(&cfg.DryRun, "dry-run")
	r.str(&cfg.LogLevel, "log-level", "")

	cfg.Gateway = strings.ToLower(cfg.Gateway)
	cfg.Trigger = strings.ToLower(cfg.Trigger)
	cfg.MinimumRole = strings.ToLower(cfg.MinimumRole)
	cfg.CompareMode = strings.ToLower(cfg.CompareMode)

	return cfg, errors.Join(r.errs...)
}

// Validate reports every missing or inconsistent setting.
func (c Config) Validate() error {
	var problems []string

	if c.GitHubToken == "" {
		problems = append(problems, "github-token is required")
	}
	if c.APIKey == "" {
		problems = append(problems, "api-key is required")
	}
	if c.Model == "" {
		problems = append(problems, "model is required")
	}
	if c.Repository == "" {
		problems = append(problems, "GITHUB_REPOSITORY is required (owner/repo)")
	} else if owner, repo, ok := strings.Cut(c.Repository, "/"); !ok || owner == "" || repo == "" {
		problems = append(problems, fmt.Sprintf("repository %q is not owner/repo", c.Repository))
	}

	switch c.Gateway {
	case llm.GatewayOpenAI, llm.GatewayDigitalOcean, llm.GatewayVercel, llm.GatewayAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("unknown gateway %q", c.Gateway))
	}
	switch c.Trigger {
	case trigger.ModePR, trigger.ModeComment:
	default:
		problems = append(problems, fmt.Sprintf("unknown trigger %q (want pr or comment)", c.Trigger))
	}
	if !trigger.ValidRole(c.MinimumRole) {
		problems = append(problems, fmt.Sprintf("unknown minimum-role %q", c.MinimumRole))
	}
	switch c.CompareMode {
	case CompareAPI, CompareLocal:
	default:
		problems = append(problems, fmt.Sprintf("unknown compare-mode %q (want api or local)", c.CompareMode))
	}
	if c.PRNumber < 0 {
		problems = append(problems, "pr number must be positive")
	}
	if c.ModelTimeout < 0 {
		problems = append(problems, "model-timeout must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ModelConfig returns the llm settings for model (empty means c.Model).
func (c Config) ModelConfig(model string) llm.Config {
	if model == "" {
		model = c.Model
	}
	lc := llm.DefaultConfig()
	lc.Gateway = c.Gateway
	lc.APIKey = c.APIKey
	lc.Model = model
	lc.Timeout = c.ModelTimeout
	return lc
}

// Mask registers the credentials with the Actions runner, which then redacts
// them from the job log.
func (c Config) Mask(w io.Writer) {
	action := githubactions.New(githubactions.WithWriter(w))
	for _, secret := range []string{c.GitHubToken, c.APIKey} {
		if secret != "" {
			action.AddMask(secret)
		}
	}
}

// SummaryModel is the model used for the summarize pass.
func (c Config) SummaryModel() string {
	if c.FastModel != "" {
		return c.FastModel
	}
	return c.Model
}

type reader struct {
	lookup Lookup
	action *githubactions.Action
	errs   []error
}

// get returns the action input, then its underscore spelling, then the
// fallback environment variable. Blank values count as unset.
func (r *reader) get(input, env string) (string, bool) {
	if input != "" {
		if v := r.action.GetInput(input); v != "" {
			return v, true
		}
		key := "INPUT_" + strings.ToUpper(strings.ReplaceAll(input, "-", "_"))
		if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	if env != "" {
		if v, ok := r.lookup(env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (r *reader) str(dst *string, input, env string) {
	if v, ok := r.get(input, env); ok {
		*dst = v
	}
}

func (r *reader) boolean(dst *bool, input string) {
	v, ok := r.get(input, "")
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalidConfig, input, v))
		return
	}
	*dst = b
}

func (r *reader) integer(dst *int, input string) {
	v, ok := r.get(input, "")
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalidConfig, input, v))
		return
	}
	*dst = n
}

func (r *reader) duration(dst *time.Duration, input string) {
	v, ok := r.get(input, "")
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %q is not a duration", ErrInvalidConfig, input, v))
		return
	}
	*dst = d
}
