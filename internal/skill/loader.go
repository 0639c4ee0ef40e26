package skill

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
)

const (
	mainDocument  = "SKILL.md"
	referencesDir = "references"
)

//go:embed bundled
var bundledFS embed.FS

// Bundled returns the skills shipped with the binary.
func Bundled() ([]Skill, error) {
	sub, err := fs.Sub(bundledFS, "bundled")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// Load returns the bundled skills merged with those found under skillsPath.
// skillsPath is resolved against workspace and must stay inside it. A missing
// override directory is not an error.
func Load(workspace, skillsPath string) ([]Skill, error) {
	bundled, err := Bundled()
	if err != nil {
		return nil, fmt.Errorf("loading bundled skills: %w", err)
	}

	dir, err := ResolvePath(workspace, skillsPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("no repository skills directory", "path", dir)
		return bundled, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading skills path: %w", err)
	}
	if !info.IsDir() {
		log.Warn("skills path is not a directory, using bundled skills only", "path", dir)
		return bundled, nil
	}

	overrides, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("loading skills from %s: %w", dir, err)
	}
	return Merge(bundled, overrides), nil
}

// ResolvePath resolves skillsPath against workspace. An empty workspace means
// the current directory.
func ResolvePath(workspace, skillsPath string) (string, error) {
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		workspace = wd
	}

	root, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}

	resolved := skillsPath
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q (use a relative path within the repository)", ErrPathEscape, skillsPath)
	}
	return resolved, nil
}

// Merge overlays overrides onto base by stem. An override replaces the base
// skill in place; new stems are appended in override order.
func Merge(base, overrides []Skill) []Skill {
	merged := make([]Skill, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[s.Stem] = i
	}

	for _, s := range overrides {
		if i, ok := index[s.Stem]; ok {
			log.Debug("repository skill overrides bundled skill", "stem", s.Stem)
			merged[i] = s
			continue
		}
		index[s.Stem] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

// LoadFS reads every skill at the root of fsys. Oversized and malformed
// documents are skipped with a warning.
func LoadFS(fsys fs.FS) ([]Skill, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var skills []Skill
	for _, entry := range entries {
		name := entry.Name()

		info, err := fs.Stat(fsys, name)
		if err != nil {
			log.Warn("skipping unreadable skill entry", "entry", name, "error", err)
			continue
		}

		var (
			s  Skill
			ok bool
		)
		switch {
		case info.IsDir():
			s, ok = loadDirectory(fsys, name)
		case strings.HasSuffix(name, ".md"):
			s, ok = loadDocument(fsys, name, strings.TrimSuffix(name, ".md"))
		default:
			continue
		}
		if ok {
			skills = append(skills, s)
		}
	}
	return skills, nil
}

func loadDirectory(fsys fs.FS, stem string) (Skill, bool) {
	s, ok := loadDocument(fsys, path.Join(stem, mainDocument), stem)
	if !ok {
		return Skill{}, false
	}

	refDir := path.Join(stem, referencesDir)
	entries, err := fs.ReadDir(fsys, refDir)
	if err != nil {
		// No references directory.
		return s, true
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, ok := readDocument(fsys, path.Join(refDir, entry.Name()))
		if !ok {
			continue
		}
		s.Refs = append(s.Refs, Reference{
			Filename: entry.Name(),
			Content:  strings.TrimSpace(string(data)),
		})
	}
	return s, true
}

func loadDocument(fsys fs.FS, name, stem string) (Skill, bool) {
	data, ok := readDocument(fsys, name)
	if !ok {
		return Skill{}, false
	}
	s, err := Parse(stem, data)
	if err != nil {
		log.Warn("skipping malformed skill", "file", name, "error", err)
		return Skill{}, false
	}
	return s, true
}

func readDocument(fsys fs.FS, name string) ([]byte, bool) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, false
	}
	if !info.Mode().IsRegular() {
		return nil, false
	}
	if info.Size() > MaxFileBytes {
		log.Warn("skipping oversized skill document", "file", name, "bytes", info.Size(), "limit", MaxFileBytes)
		return nil, false
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		log.Warn("skipping unreadable skill document", "file", name, "error", err)
		return nil, false
	}
	return data, true
}

type frontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	AppliesTo   patterns `yaml:"applies-to"`
}

// patterns accepts either a single glob or a list of globs.
type patterns []string

func (p *patterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" {
			*p = patterns{node.Value}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("applies-to must be a string or a list of strings")
	}
}

// Parse builds a Skill from a markdown document with optional YAML front
// matter. The name defaults to the stem.
func Parse(stem string, raw []byte) (Skill, error) {
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return Skill{}, err
	}

	var fm frontMatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return Skill{}, fmt.Errorf("parsing front matter: %w", err)
		}
	}

	name := strings.TrimSpace(fm.Name)
	if name == "" {
		name = stem
	}

	return Skill{
		Stem:        stem,
		Name:        name,
		Description: strings.TrimSpace(fm.Description),
		Version:     fm.Version,
		AppliesTo:   []string(fm.AppliesTo),
		Content:     strings.TrimSpace(string(body)),
	}, nil
}

var fence = []byte("---")

func splitFrontMatter(raw []byte) (meta, body []byte, err error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	first, rest, found := bytes.Cut(raw, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimSpace(first), fence) {
		return nil, raw, nil
	}

	for offset := 0; offset <= len(rest); {
		line, next, more := bytes.Cut(rest[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), fence) {
			return rest[:offset], next, nil
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return nil, nil, errors.New("unterminated front matter")
}
