package tools

import (
	"context"
	"testing"
)

func TestRegistryCall(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Echo()); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := reg.Call(context.Background(), "echo", map[string]any{"text": "ping"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "ping" {
		t.Fatalf("unexpected output: %v", out)
	}

	if _, err := reg.Call(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestEchoRequiresText(t *testing.T) {
	if _, err := Echo().Call(context.Background(), nil); err == nil {
		t.Fatalf("expected error for missing text")
	}
}

func TestClock(t *testing.T) {
	out, err := Clock().Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out == "" {
		t.Fatalf("expected timestamp")
	}
}

func TestDescriptors(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Echo())
	_ = reg.Register(Clock())
	descs := reg.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	for _, d := range descs {
		if d.Name == "" || d.Description == "" {
			t.Fatalf("incomplete descriptor: %+v", d)
		}
	}
}

func TestDescriptorsSortedByName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid", "beta"} {
		_ = reg.Register(Func{
			ToolName:        name,
			ToolDescription: name,
			Fn:              func(context.Context, map[string]any) (any, error) { return nil, nil },
		})
	}
	want := []string{"alpha", "beta", "mid", "zeta"}
	for attempt := 0; attempt < 5; attempt++ {
		descs := reg.Descriptors()
		for i, d := range descs {
			if d.Name != want[i] {
				t.Fatalf("descriptor %d: got %q want %q", i, d.Name, want[i])
			}
		}
	}
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Func{ToolName: "dup", ToolDescription: "first", Fn: func(context.Context, map[string]any) (any, error) { return "first", nil }})
	_ = reg.Register(Func{ToolName: "dup", ToolDescription: "second", Fn: func(context.Context, map[string]any) (any, error) { return "second", nil }})
	out, err := reg.Call(context.Background(), "dup", nil)
	if err != nil || out != "second" {
		t.Fatalf("expected replacement, got %v %v", out, err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Len())
	}
}
