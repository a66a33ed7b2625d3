// Package skills loads skill definitions from SKILL.md files and
// exposes an execute-by-name registry the action executor dispatches to.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// SkillSpec describes a skill loaded from a SKILL.md file.
type SkillSpec struct {
	Name        string
	Description string
	Version     string
	Source      string
	License     string
	Metadata    map[string]string
	InputSchema map[string]any
	Body        string
	Path        string
	Dir         string
}

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// LoadDir scans a directory for skill subdirectories with SKILL.md.
func LoadDir(root string) ([]SkillSpec, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []SkillSpec
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillPath := filepath.Join(root, entry.Name(), "SKILL.md")
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}
		skill, err := LoadFile(skillPath)
		if err != nil {
			return nil, err
		}
		out = append(out, skill)
	}
	return out, nil
}

// LoadFile parses a single SKILL.md file.
func LoadFile(path string) (SkillSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SkillSpec{}, err
	}
	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return SkillSpec{}, err
	}
	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return SkillSpec{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	source := strings.TrimSpace(parsed.Source)
	if source == "" {
		source = "local"
	}
	spec := SkillSpec{
		Name:        parsed.Name,
		Description: parsed.Description,
		Version:     strings.TrimSpace(parsed.Version),
		Source:      source,
		License:     parsed.License,
		Metadata:    parsed.Metadata,
		InputSchema: parsed.InputSchema,
		Body:        strings.TrimSpace(body),
		Path:        path,
		Dir:         filepath.Dir(path),
	}
	if err := validate(spec); err != nil {
		return SkillSpec{}, err
	}
	return spec, nil
}

type frontmatter struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Version     string            `yaml:"version"`
	Source      string            `yaml:"source"`
	License     string            `yaml:"license"`
	Metadata    map[string]string `yaml:"metadata"`
	InputSchema map[string]any    `yaml:"input-schema"`
}

func splitFrontmatter(content string) (string, string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", errors.New("missing frontmatter")
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return "", "", errors.New("invalid frontmatter")
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

func validate(spec SkillSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	dirName := filepath.Base(spec.Dir)
	if dirName != name {
		return fmt.Errorf("name must match directory name (%s)", dirName)
	}
	desc := strings.TrimSpace(spec.Description)
	if desc == "" {
		return errors.New("description is required")
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}
