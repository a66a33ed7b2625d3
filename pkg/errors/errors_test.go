package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New(CodeNotConnected, "server fs unavailable", cause)
	if !strings.Contains(err.Error(), "NOT_CONNECTED") {
		t.Fatalf("missing code in message: %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected unwrap to reach cause")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CodeBackendFailure, "tool failed", nil).
		WithContext("tool", "search_web").
		WithRecoverable(true)
	if err.Context["tool"] != "search_web" {
		t.Fatalf("context not set")
	}
	if !err.Recoverable {
		t.Fatalf("expected recoverable")
	}
}

func TestCodeOf(t *testing.T) {
	if code := CodeOf(New(CodeTimeout, "slow", nil)); code != CodeTimeout {
		t.Fatalf("unexpected code: %s", code)
	}
	if code := CodeOf(stderrors.New("plain")); code != CodeInternal {
		t.Fatalf("expected internal for plain error, got %s", code)
	}
	if code := CodeOf(nil); code != "" {
		t.Fatalf("expected empty code for nil")
	}
}

func TestAsHeliconError(t *testing.T) {
	plain := stderrors.New("oops")
	he := AsHeliconError(plain)
	if he.Code != CodeInternal {
		t.Fatalf("expected wrap as internal, got %s", he.Code)
	}
	same := AsHeliconError(he)
	if same != he {
		t.Fatalf("expected identity for typed error")
	}
	if AsHeliconError(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}
