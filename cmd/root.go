package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
	"github.com/Yates-Labs/frc-reviewer/internal/orchestrator"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "frc-reviewer",
	Short: "FRC Reviewer - skill-driven pull request review for robot code",
	Long: `FRC Reviewer reviews pull requests on FRC robot code with a language model.

It matches changed files against a set of review skills (WPILib, command-based,
AdvantageKit and any repository-local skills), summarizes and reviews the diff,
verifies every finding, and posts inline comments plus a summary comment.
Re-runs on the same pull request only review files changed since the last review.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevel
		if level == "" {
			level = os.Getenv("INPUT_LOG-LEVEL")
		}
		cfg := log.DefaultConfig()
		cfg.Level = log.ParseLevel(level)
		log.Init(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := rootCmd.Execute()
	_ = log.Sync()
	if err != nil {
		if errors.Is(err, orchestrator.ErrCriticalIssues) {
			fmt.Fprintln(os.Stderr, "Review found critical issues:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
