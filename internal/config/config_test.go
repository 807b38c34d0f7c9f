// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/fsops"
	"toolhost/internal/tools"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAllowedRoots, "")
	t.Setenv(EnvHTTPAddr, "")
	t.Setenv(EnvHTTPToken, "")
}

func TestLoadConfigMissingFileReturnsDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestJSONAndYAMLAreEquivalent(t *testing.T) {
	clearEnv(t)
	jsonPath := writeTempConfig(t, "config.json", `{
		"allowed_roots": ["/srv/a", "/srv/b"],
		"tools": {"deny": ["coreutils"]},
		"tool_limits": {"max_file_size_bytes": 2048}
	}`)
	yamlPath := writeTempConfig(t, "config.yaml", `
allowed_roots:
  - /srv/a
  - /srv/b
tools:
  deny: [coreutils]
tool_limits:
  max_file_size_bytes: 2048
`)

	fromJSON, err := LoadConfig(jsonPath)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	fromYAML, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("json and yaml configs differ (-json +yaml):\n%s", diff)
	}
	if fromJSON.FSLimits().MaxFileSizeBytes != 2048 {
		t.Fatalf("expected custom file size, got %d", fromJSON.FSLimits().MaxFileSizeBytes)
	}
}

func TestConfigSchemaRejections(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		file    string
		content string
		field   string
	}{
		{name: "unknown field", file: "c.json", content: `{"unknown_field": 123}`, field: "unknown_field"},
		{name: "invalid type", file: "c.json", content: `{"tool_limits": {"max_file_size_bytes": "oops"}}`, field: "tool_limits.max_file_size_bytes"},
		{name: "negative", file: "c.json", content: `{"tool_timeouts": {"default_seconds": -1}}`, field: "tool_timeouts.default_seconds"},
		{name: "bad log level", file: "c.json", content: `{"log_level": "loud"}`, field: "log_level"},
		{name: "yaml type", file: "c.yml", content: "allowed_roots: 3\n", field: "allowed_roots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("expected error to name %q, got %v", tt.field, err)
			}
		})
	}
}

func TestMalformedConfig(t *testing.T) {
	clearEnv(t)
	for _, tt := range []struct{ file, content string }{
		{"bad.json", `{"allowed_roots": [`},
		{"bad.yaml", "allowed_roots: [\n"},
		{"list.json", `[]`},
	} {
		if _, err := LoadConfig(writeTempConfig(t, tt.file, tt.content)); !apperrors.HasCode(err, apperrors.CodeConfig) {
			t.Fatalf("%s: expected config error, got %v", tt.file, err)
		}
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"allowed_roots": ["/from/file"], "http": {"addr": ":9000", "token": "file"}}`)
	t.Setenv(EnvAllowedRoots, strings.Join([]string{"/env/a", "", "/env/b"}, string(os.PathListSeparator)))
	t.Setenv(EnvHTTPAddr, "127.0.0.1:7000")
	t.Setenv(EnvHTTPToken, "env-token")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"/env/a", "/env/b"}, cfg.AllowedRoots); diff != "" {
		t.Fatalf("roots mismatch (-want +got):\n%s", diff)
	}
	if cfg.HTTP.Addr != "127.0.0.1:7000" || cfg.HTTP.Token != "env-token" {
		t.Fatalf("expected env http settings, got %+v", cfg.HTTP)
	}
}

func TestToolLimitsDefaultsApplied(t *testing.T) {
	cfg := DefaultConfig()
	if diff := cmp.Diff(fsops.DefaultLimits(), cfg.FSLimits()); diff != "" {
		t.Fatalf("limits mismatch (-want +got):\n%s", diff)
	}
}

func TestToolRateLimitsCustom(t *testing.T) {
	clearEnv(t)
	content := `{
		"tool_rate_limits": {
			"default_per_minute": 10,
			"per_tool": {"filesystem": 2},
			"cooldown_seconds": {"filesystem": 7, "echo": 0}
		}
	}`
	cfg, err := LoadConfig(writeTempConfig(t, "config.json", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := tools.RateLimitConfig{
		DefaultPerMinute: 10,
		PerTool:          map[string]int{"filesystem": 2},
		Cooldowns:        map[string]time.Duration{"filesystem": 7 * time.Second},
	}
	if diff := cmp.Diff(want, cfg.ToolRateLimitsConfig()); diff != "" {
		t.Fatalf("rate limits mismatch (-want +got):\n%s", diff)
	}
}

func TestToolTimeoutsCustom(t *testing.T) {
	clearEnv(t)
	content := `{"tool_timeouts": {"default_seconds": 3, "per_tool_seconds": {"coreutils": 9}}}`
	cfg, err := LoadConfig(writeTempConfig(t, "config.json", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	timeouts := cfg.ToolTimeoutsConfig()
	if timeouts.TimeoutForTool("coreutils") != 9*time.Second || timeouts.TimeoutForTool("echo") != 3*time.Second {
		t.Fatalf("unexpected timeouts %+v", timeouts)
	}
}

func TestToolOutputFiltersCustom(t *testing.T) {
	clearEnv(t)
	content := `{"tool_output_filters": {"max_chars": 50, "strip_ansi": false}}`
	cfg, err := LoadConfig(writeTempConfig(t, "config.json", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filters := cfg.ToolOutputFiltersConfig()
	want := tools.OutputFilterConfig{MaxChars: 50, StripANSI: false, StripControl: true}
	if diff := cmp.Diff(want, filters); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestTracingSection(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeTempConfig(t, "config.yaml", "tracing:\n  enabled: true\n  output: spans.json\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(TracingConfig{Enabled: true, Output: "spans.json"}, cfg.Tracing); diff != "" {
		t.Fatalf("tracing mismatch (-want +got):\n%s", diff)
	}
	if DefaultConfig().Tracing.Enabled {
		t.Fatal("tracing must be off by default")
	}
	if _, err := LoadConfig(writeTempConfig(t, "c.json", `{"tracing": {"enabled": "yes"}}`)); !apperrors.HasCode(err, apperrors.CodeConfig) {
		t.Fatalf("expected config error for non-boolean enabled, got %v", err)
	}
}

func TestToolPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools = ToolSettings{Allow: []string{"echo"}, Deny: []string{"coreutils"}}
	policy := cfg.ToolPolicy()
	if err := policy.Check("echo"); err != nil {
		t.Fatalf("echo should be allowed: %v", err)
	}
	for _, name := range []string{"coreutils", "filesystem"} {
		if err := policy.Check(name); !apperrors.HasCode(err, apperrors.CodePermission) {
			t.Fatalf("%s should be refused, got %v", name, err)
		}
	}
}

func TestValidateWarnings(t *testing.T) {
	reg := tools.NewRegistry()
	reg.RegisterModules(&tools.StructuredTool{
		NameValue:       "echo",
		OperationsValue: []tools.Operation{{Name: "echo"}},
	})

	cfg := DefaultConfig()
	cfg.HTTP.Addr = "0.0.0.0:8080"
	cfg.Tools.Allow = []string{"echo", "ghost"}
	cfg.ToolTimeouts.PerToolSeconds = map[string]int{"phantom": 1}

	var got []string
	for _, w := range cfg.Validate(reg) {
		got = append(got, w.Field)
	}
	want := []string{"allowed_roots", "http.token", "tools.allow", "tool_timeouts.per_tool_seconds"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}

	cfg = DefaultConfig()
	cfg.AllowedRoots = []string{t.TempDir()}
	if warnings := cfg.Validate(reg); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	clearEnv(t)
	if _, err := LoadConfig(writeTempConfig(t, "example.json", ExampleConfigJSON())); err != nil {
		t.Fatalf("example config rejected: %v", err)
	}
	if !strings.Contains(SchemaJSON(), `"allowed_roots"`) {
		t.Fatal("schema does not describe allowed_roots")
	}
}
