package config

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	want := Default()
	if cfg.Model != want.Model || cfg.SkillsPath != ".github/frc-skills" || cfg.ModelTimeout != 5*time.Minute {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !cfg.SkillSelection || cfg.FailOnCritical || cfg.DryRun {
		t.Errorf("unexpected boolean defaults: %+v", cfg)
	}
}

func TestFromEnv_ActionInputs(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"INPUT_GITHUB-TOKEN":     "ghs_token",
		"INPUT_API_KEY":          "sk-key",
		"INPUT_GATEWAY":          "Anthropic",
		"INPUT_MODEL":            "claude-sonnet",
		"INPUT_FAST-MODEL":       "claude-haiku",
		"INPUT_FAIL-ON-CRITICAL": "true",
		"INPUT_TRIGGER":          "comment",
		"INPUT_MINIMUM-ROLE":     "Maintain",
		"INPUT_MODEL-TIMEOUT":    "90s",
		"INPUT_SKILL-SELECTION":  "false",
		"INPUT_SKILLS-PATH":      "   ",
		"GITHUB_REPOSITORY":      "team254/robot",
		"GITHUB_WORKSPACE":       "/github/workspace",
		"GITHUB_EVENT_NAME":      "issue_comment",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.GitHubToken != "ghs_token" || cfg.APIKey != "sk-key" {
		t.Errorf("credentials not read: %+v", cfg)
	}
	if cfg.Gateway != "anthropic" || cfg.MinimumRole != "maintain" || cfg.Trigger != "comment" {
		t.Errorf("values should be normalized: %+v", cfg)
	}
	if !cfg.FailOnCritical || cfg.SkillSelection || cfg.ModelTimeout != 90*time.Second {
		t.Errorf("typed inputs not parsed: %+v", cfg)
	}
	if cfg.SkillsPath != ".github/frc-skills" {
		t.Errorf("blank input should keep the default, got %q", cfg.SkillsPath)
	}
	if cfg.SummaryModel() != "claude-haiku" {
		t.Errorf("SummaryModel() = %s", cfg.SummaryModel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFromEnv_FallbackEnv(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"GITHUB_TOKEN":         "env-token",
		"FRC_REVIEWER_API_KEY": "env-key",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GitHubToken != "env-token" || cfg.APIKey != "env-key" {
		t.Errorf("fallback env vars not read: %+v", cfg)
	}
	if cfg.SummaryModel() != cfg.Model {
		t.Error("SummaryModel should fall back to Model")
	}
}

func TestFromEnv_Malformed(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"INPUT_FAIL-ON-CRITICAL": "sometimes",
		"INPUT_MODEL-TIMEOUT":    "five minutes",
		"INPUT_PR-NUMBER":        "seven",
	}))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	for _, name := range []string{"fail-on-critical", "model-timeout", "pr-number"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestFromEnv_HyphenInputWinsOverUnderscore(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"INPUT_FAST-MODEL": " claude-haiku ",
		"INPUT_FAST_MODEL": "gpt-4o-mini",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.FastModel != "claude-haiku" {
		t.Errorf("FastModel = %q, want the runner's hyphenated input", cfg.FastModel)
	}
}

func TestMask(t *testing.T) {
	var out bytes.Buffer
	Config{GitHubToken: "ghs_secret", APIKey: "sk-secret"}.Mask(&out)

	want := "::add-mask::ghs_secret\n::add-mask::sk-secret\n"
	if out.String() != want {
		t.Errorf("Mask wrote %q, want %q", out.String(), want)
	}

	out.Reset()
	Config{}.Mask(&out)
	if out.Len() != 0 {
		t.Errorf("empty credentials should not be masked, got %q", out.String())
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.GitHubToken = "t"
	valid.APIKey = "k"
	valid.Repository = "o/r"

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.GitHubToken = "" }, "github-token"},
		{"missing key", func(c *Config) { c.APIKey = "" }, "api-key"},
		{"bad repo", func(c *Config) { c.Repository = "robot" }, "owner/repo"},
		{"gateway", func(c *Config) { c.Gateway = "bedrock" }, "gateway"},
		{"trigger", func(c *Config) { c.Trigger = "push" }, "trigger"},
		{"role", func(c *Config) { c.MinimumRole = "owner" }, "minimum-role"},
		{"compare", func(c *Config) { c.CompareMode = "rsync" }, "compare-mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestModelConfig(t *testing.T) {
	c := Default()
	c.Gateway = "vercel"
	c.APIKey = "k"
	c.ModelTimeout = time.Minute

	lc := c.ModelConfig("")
	if lc.Model != "gpt-4o" || lc.Gateway != "vercel" || lc.APIKey != "k" || lc.Timeout != time.Minute {
		t.Errorf("ModelConfig() = %+v", lc)
	}
	if c.ModelConfig("fast").Model != "fast" {
		t.Error("explicit model should win")
	}
}
