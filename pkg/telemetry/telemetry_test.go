package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigureSlogJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")

	logger.InfoContext(context.Background(), "hello", slog.String("key", "value"))
	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"key":"value"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestConfigureSlogLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "text")

	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLogLevel(input); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestSetLogLevelTakesEffect(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "text")

	logger.Debug("before")
	SetLogLevel("debug")
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Fatalf("debug record must be filtered before the level change: %s", out)
	}
	if !strings.Contains(out, "after") {
		t.Fatalf("debug record missing after the level change: %s", out)
	}
}

func TestSamplerBounds(t *testing.T) {
	always := trace.AlwaysSample().Description()
	for _, ratio := range []float64{0, -1, 1, 2.5} {
		if got := sampler(ratio).Description(); got != always {
			t.Fatalf("ratio %v must sample everything, got %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); got == always {
		t.Fatalf("in-range ratio must produce a ratio sampler")
	}
}

func TestBuildResourceIncludesDeploymentAttributes(t *testing.T) {
	res, err := buildResource("helicon-test", "0.0.0", Config{
		Environment:   "staging",
		ResourceAttrs: map[string]string{"region": "eu-west-1", "cluster": "blue"},
	})
	if err != nil {
		t.Fatalf("build resource: %v", err)
	}

	attrs := res.Attributes()
	if v, ok := findAttr(attrs, "deployment.environment"); !ok || v.AsString() != "staging" {
		t.Fatalf("environment attribute missing: %v", attrs)
	}
	if v, ok := findAttr(attrs, "region"); !ok || v.AsString() != "eu-west-1" {
		t.Fatalf("operator attribute missing: %v", attrs)
	}
	if v, ok := findAttr(attrs, "cluster"); !ok || v.AsString() != "blue" {
		t.Fatalf("operator attribute missing: %v", attrs)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := InitWithConfig("helicon-test", "0.0.0", Config{Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestInitOTLPRequiresEndpoint(t *testing.T) {
	_, err := InitWithConfig("helicon-test", "0.0.0", Config{Exporter: "otlp"})
	if err == nil {
		t.Fatalf("expected error for missing otlp endpoint")
	}
}

func findAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestActionAttributes(t *testing.T) {
	attrs := ActionAttributes("a1", "search_web", "tool", true, 12.5)

	if v, ok := findAttr(attrs, AttrActionTarget); !ok || v.AsString() != "search_web" {
		t.Fatalf("target attribute missing: %v", attrs)
	}
	if v, ok := findAttr(attrs, AttrActionSuccess); !ok || !v.AsBool() {
		t.Fatalf("success attribute missing: %v", attrs)
	}
	if v, ok := findAttr(attrs, AttrActionDurationMs); !ok || v.AsFloat64() != 12.5 {
		t.Fatalf("duration attribute missing: %v", attrs)
	}
}

func TestSessionAttributesSkipsEmpty(t *testing.T) {
	attrs := SessionAttributes("tenant-1", "", "session-1")
	if len(attrs) != 2 {
		t.Fatalf("empty identity fields must be skipped: %v", attrs)
	}
	if _, ok := findAttr(attrs, AttrAgentID); ok {
		t.Fatalf("agent attribute must be absent: %v", attrs)
	}
}
