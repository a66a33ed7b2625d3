package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "summarize", `---
name: summarize
description: Summarize a block of text.
version: 1.2.0
source: marketplace
metadata:
  author: docs-team
---
Summarize the provided text in three sentences.`)

	spec, err := LoadFile(filepath.Join(root, "summarize", "SKILL.md"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.Name != "summarize" || spec.Version != "1.2.0" || spec.Source != "marketplace" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if spec.Body == "" {
		t.Fatalf("body missing")
	}
	if spec.Metadata["author"] != "docs-team" {
		t.Fatalf("metadata missing")
	}
}

func TestLoadFileDefaultsSource(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "echo", `---
name: echo
description: Echo input back.
---
Echo.`)
	spec, err := LoadFile(filepath.Join(root, "echo", "SKILL.md"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.Source != "local" {
		t.Fatalf("expected local source default, got %q", spec.Source)
	}
}

func TestLoadFileValidation(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "bad", `---
name: mismatched
description: Name does not match directory.
---
Body.`)
	if _, err := LoadFile(filepath.Join(root, "bad", "SKILL.md")); err == nil {
		t.Fatalf("expected dir mismatch error")
	}

	writeSkill(t, root, "nodesc", `---
name: nodesc
---
Body.`)
	if _, err := LoadFile(filepath.Join(root, "nodesc", "SKILL.md")); err == nil {
		t.Fatalf("expected missing description error")
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "one", "---\nname: one\ndescription: First.\n---\nA.")
	writeSkill(t, root, "two", "---\nname: two\ndescription: Second.\n---\nB.")
	// A directory without SKILL.md is skipped.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	specs, err := LoadDir(root)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(specs))
	}
}

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(SkillSpec{Name: "greet", Description: "greet"}, func(_ context.Context, args map[string]any) (any, error) {
		return "hello " + args["who"].(string), nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := reg.Execute(context.Background(), "greet", map[string]any{"who": "world"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("unexpected output: %v", out)
	}

	if _, err := reg.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected error for unknown skill")
	}
}

func TestRegistryRequiresHandler(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(SkillSpec{Name: "x"}, nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
	if err := reg.Register(SkillSpec{}, func(context.Context, map[string]any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestRegistryDescriptors(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(SkillSpec{Name: "a", Description: "A", Version: "0.1.0", Source: "bundle"}, func(context.Context, map[string]any) (any, error) { return nil, nil })
	descs := reg.Descriptors()
	if len(descs) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(descs))
	}
	if descs[0].Version != "0.1.0" || descs[0].Source != "bundle" {
		t.Fatalf("unexpected descriptor: %+v", descs[0])
	}
}

func TestRegistryDescriptorsSortedByName(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	for _, name := range []string{"triage", "summarize", "draft-reply", "classify"} {
		_ = reg.Register(SkillSpec{Name: name, Description: name}, noop)
	}
	want := []string{"classify", "draft-reply", "summarize", "triage"}
	for attempt := 0; attempt < 5; attempt++ {
		descs := reg.Descriptors()
		for i, d := range descs {
			if d.Name != want[i] {
				t.Fatalf("descriptor %d: got %q want %q", i, d.Name, want[i])
			}
		}
	}
}
