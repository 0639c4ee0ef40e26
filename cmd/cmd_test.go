package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestPositionsCommand(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n package frc.robot;\n+import edu.wpi.first.wpilibj.Timer;\n public final class Util {}\n"

	out := run(t, patch, "positions")
	if !strings.Contains(out, "LINE") || !strings.Contains(out, "POSITION") {
		t.Errorf("missing headers:\n%s", out)
	}
	if !strings.Contains(out, "Total: 1 commentable lines") {
		t.Errorf("missing total:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "util.patch")
	if err := os.WriteFile(path, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}
	if fromFile := run(t, "", "positions", path); fromFile != out {
		t.Errorf("file and stdin output differ:\n%s\n%s", fromFile, out)
	}
}

func TestPositionsCommand_NoAddedLines(t *testing.T) {
	out := run(t, "@@ -1,1 +1,0 @@\n-gone\n", "positions", "-")
	if !strings.Contains(out, "No added lines") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSkillsCommand(t *testing.T) {
	workspace := t.TempDir()

	out := run(t, "", "skills", "--workspace", workspace)
	for _, stem := range []string{"wpilib", "command-based", "advantagekit"} {
		if !strings.Contains(out, stem) {
			t.Errorf("bundled skill %s not listed:\n%s", stem, out)
		}
	}

	out = run(t, "", "skills", "--workspace", workspace, "README.md")
	if !strings.Contains(out, "No skills match") {
		t.Errorf("java skills should not match README.md:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	if out := run(t, "", "version"); !strings.Contains(out, "frc-reviewer dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"first\nsecond", 20, "first"},
		{"abcdefgh", 5, "abcd…"},
		{"abc", 1, "…"},
	}
	for _, tt := range tests {
		if got := clip(tt.in, tt.n); got != tt.want {
			t.Errorf("clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
