package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/frc-reviewer/internal/diff"
)

var positionsCmd = &cobra.Command{
	Use:   "positions [patch-file]",
	Short: "Print the line to diff position map of a patch",
	Long: `Read a unified diff patch (as returned by the pull request files API) and
print, for every added line, the diff position an inline comment must use.

Reads from stdin when no file is given or the file is "-".

Examples:
  frc-reviewer positions arm.patch
  gh api repos/o/r/pulls/12/files --jq '.[0].patch' | frc-reviewer positions`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	var (
		patch []byte
		err   error
	)
	if len(args) == 0 || args[0] == "-" {
		patch, err = io.ReadAll(cmd.InOrStdin())
	} else {
		patch, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read patch: %w", err)
	}

	positions := diff.ComputePositions(string(patch))
	out := cmd.OutOrStdout()
	if len(positions) == 0 {
		fmt.Fprintln(out, "No added lines in patch")
		return nil
	}

	lines := make([]int, 0, len(positions))
	for line := range positions {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = []string{fmt.Sprintf("%d", line), fmt.Sprintf("%d", positions[line])}
	}

	printTable(out, []column{
		{title: "LINE", width: 10, color: nameColor, right: true},
		{title: "POSITION", width: 12, color: numberColor, right: true},
	}, rows)
	printSummary(out, fmt.Sprintf("Total: %d commentable lines", len(lines)))
	return nil
}
