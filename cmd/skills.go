package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/frc-reviewer/internal/skill"
)

var (
	skillsWorkspace string
	skillsPath      string
)

var skillsCmd = &cobra.Command{
	Use:   "skills [file...]",
	Short: "List the review skills that are loaded or that match files",
	Long: `List the bundled skills merged with repository-local overrides.

With file arguments, only the skills that would apply to those files are shown.

Examples:
  frc-reviewer skills
  frc-reviewer skills src/main/java/frc/robot/subsystems/Arm.java
  frc-reviewer skills --skills-path .github/frc-skills Robot.java`,
	RunE: runSkills,
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	skillsCmd.Flags().StringVar(&skillsWorkspace, "workspace", "", "Repository root the skills path is resolved against (default: current directory)")
	skillsCmd.Flags().StringVar(&skillsPath, "skills-path", ".github/frc-skills", "Directory of repository-local skills")
}

func runSkills(cmd *cobra.Command, args []string) error {
	skills, err := skill.Load(skillsWorkspace, skillsPath)
	if err != nil {
		return fmt.Errorf("failed to load skills: %w", err)
	}
	if len(args) > 0 {
		skills = skill.Match(skills, args)
	}

	out := cmd.OutOrStdout()
	if len(skills) == 0 {
		fmt.Fprintln(out, "No skills match")
		return nil
	}

	rows := make([][]string, len(skills))
	for i, s := range skills {
		appliesTo := strings.Join(s.AppliesTo, ", ")
		if s.Global() {
			appliesTo = "* (global)"
		}
		selectable := ""
		if s.Selectable() {
			selectable = "yes"
		}
		rows[i] = []string{s.Stem, s.Name, appliesTo, fmt.Sprintf("%d", len(s.Refs)), selectable}
	}

	printTable(out, []column{
		{title: "STEM", width: 18, color: nameColor},
		{title: "NAME", width: 28, color: textColor},
		{title: "APPLIES TO", width: 24, color: textColor},
		{title: "REFS", width: 6, color: numberColor, right: true},
		{title: "SELECTABLE", width: 12, color: numberColor},
	}, rows)
	printSummary(out, fmt.Sprintf("Total: %d skills", len(skills)))
	return nil
}
