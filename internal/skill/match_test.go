package skill

import (
	"strings"
	"testing"
)

func TestMatch(t *testing.T) {
	skills := []Skill{
		{Stem: "java", AppliesTo: []string{"*.java"}},
		{Stem: "global"},
		{Stem: "star", AppliesTo: []string{"*.gradle", "*"}},
		{Stem: "swerve", AppliesTo: []string{"src/**/swerve/*.java"}},
		{Stem: "docs", AppliesTo: []string{"docs/*.md"}},
	}

	tests := []struct {
		name      string
		filenames []string
		want      string
	}{
		{"java file", []string{"Robot.java"}, "java,global,star"},
		{"readme", []string{"README.md"}, "global,star"},
		{"nested java", []string{"src/main/java/frc/robot/subsystems/swerve/Module.java"}, "java,global,star,swerve"},
		{"docs", []string{"docs/setup.md", "build.gradle"}, "global,star,docs"},
		{"basename only for slashless patterns", []string{"notes/docs/setup.md"}, "global,star"},
		{"no files", nil, "global,star"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(Stems(Match(skills, tt.filenames)), ",")
			if got != tt.want {
				t.Errorf("Match(%v) = %s, want %s", tt.filenames, got, tt.want)
			}
		})
	}
}

func TestMatch_IsPure(t *testing.T) {
	skills := []Skill{{Stem: "a", AppliesTo: []string{"*.java"}}, {Stem: "b"}}
	files := []string{"Arm.java"}

	first := Stems(Match(skills, files))
	second := Stems(Match(skills, files))
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("Match not deterministic: %v vs %v", first, second)
	}
	if skills[0].Stem != "a" || files[0] != "Arm.java" {
		t.Error("Match mutated its input")
	}
}

func TestMatchFile(t *testing.T) {
	tests := []struct {
		pattern  string
		filename string
		want     bool
	}{
		{"*.java", "Robot.java", true},
		{"*.java", "src/main/java/Robot.java", true},
		{"*.java", "README.md", false},
		{"Robot*.java", "src/RobotContainer.java", true},
		{"**/*.java", "src/Robot.java", true},
		{"src/*.java", "src/Robot.java", true},
		{"src/*.java", "lib/src/Robot.java", false},
		{"*.{java,kt}", "Arm.kt", true},
		{"[", "Robot.java", false},
	}

	for _, tt := range tests {
		if got := MatchFile(tt.pattern, tt.filename); got != tt.want {
			t.Errorf("MatchFile(%q, %q) = %v, want %v", tt.pattern, tt.filename, got, tt.want)
		}
	}
}
