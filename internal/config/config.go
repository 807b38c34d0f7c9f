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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/fsops"
	"toolhost/internal/tools"
)

// Environment variables that override the configuration file.
const (
	EnvAllowedRoots = "TOOLHOST_ALLOWED_ROOTS"
	EnvHTTPAddr     = "TOOLHOST_HTTP_ADDR"
	EnvHTTPToken    = "TOOLHOST_HTTP_TOKEN"
)

// Config represents the application configuration
type Config struct {
	AllowedRoots      []string          `json:"allowed_roots,omitempty"`
	LogLevel          string            `json:"log_level,omitempty"`
	HTTP              HTTPConfig        `json:"http,omitempty"`
	Tools             ToolSettings      `json:"tools,omitempty"`
	ToolLimits        ToolLimits        `json:"tool_limits,omitempty"`
	ToolRateLimits    ToolRateLimits    `json:"tool_rate_limits,omitempty"`
	ToolTimeouts      ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters ToolOutputFilters `json:"tool_output_filters,omitempty"`
	Tracing           TracingConfig     `json:"tracing,omitempty"`
}

// TracingConfig enables dispatch span export. Output "" or "-" means stderr;
// anything else is a file spans are appended to.
type TracingConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Output  string `json:"output,omitempty"`
}

// HTTPConfig configures the HTTP channel.
type HTTPConfig struct {
	Addr  string `json:"addr,omitempty"`
	Token string `json:"token,omitempty"`
}

// ToolSettings describes tool allow/deny lists.
type ToolSettings struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// ToolLimits configures resource limits for file operations.
type ToolLimits struct {
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryDepth   int   `json:"max_directory_depth,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
	MaxSearchResults    int   `json:"max_search_results,omitempty"`
	BatchConcurrency    int   `json:"batch_concurrency,omitempty"`
}

// ToolRateLimits configures tool rate limits and cooldowns.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty"`
	CooldownSeconds  map[string]int `json:"cooldown_seconds,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for tool results.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := fsops.DefaultLimits()
	filters := tools.DefaultOutputFilterConfig()
	return &Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: "127.0.0.1:8080"},
		ToolLimits: ToolLimits{
			MaxFileSizeBytes:    limits.MaxFileSizeBytes,
			MaxDirectoryDepth:   limits.MaxDirectoryDepth,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
			MaxSearchResults:    limits.MaxSearchResults,
			BatchConcurrency:    limits.BatchConcurrency,
		},
		ToolTimeouts: ToolTimeouts{
			DefaultSeconds: int(tools.DefaultTimeoutConfig().Default.Seconds()),
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file and applies env
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to read config", err)
		default:
			if err := decodeConfig(path, data, config); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(config)
	return config, nil
}

func decodeConfig(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		converted, err := yamlToJSON(data)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfig, "invalid YAML config", err)
		}
		data = converted
	}
	normalized, err := normalizeConfigJSON(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(normalized, config); err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "failed to decode config", err)
	}
	return nil
}

func applyEnv(config *Config) {
	if val := os.Getenv(EnvAllowedRoots); val != "" {
		var roots []string
		for _, root := range filepath.SplitList(val) {
			if strings.TrimSpace(root) != "" {
				roots = append(roots, root)
			}
		}
		config.AllowedRoots = roots
	}
	if val := os.Getenv(EnvHTTPAddr); val != "" {
		config.HTTP.Addr = val
	}
	if val := os.Getenv(EnvHTTPToken); val != "" {
		config.HTTP.Token = val
	}
}

// ToolPolicy converts config settings into a dispatch policy.
func (c *Config) ToolPolicy() tools.Policy {
	return tools.Policy{
		Allow: slices.Clone(c.Tools.Allow),
		Deny:  slices.Clone(c.Tools.Deny),
	}
}

// FSLimits returns limits for the file operation facade.
func (c *Config) FSLimits() fsops.Limits {
	return fsops.Limits{
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryDepth:   c.ToolLimits.MaxDirectoryDepth,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
		MaxSearchResults:    c.ToolLimits.MaxSearchResults,
		BatchConcurrency:    c.ToolLimits.BatchConcurrency,
	}.Normalize()
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	cooldowns := make(map[string]time.Duration, len(c.ToolRateLimits.CooldownSeconds))
	for name, seconds := range c.ToolRateLimits.CooldownSeconds {
		if seconds <= 0 {
			continue
		}
		cooldowns[name] = time.Duration(seconds) * time.Second
	}
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, rate := range c.ToolRateLimits.PerTool {
		perTool[name] = rate
	}

	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
		Cooldowns:        cooldowns,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}.Normalize()
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.AllowedRoots) == 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "allowed_roots",
			Message: "no allowed roots configured; every file operation will be rejected",
		})
	}

	if c.HTTP.Token == "" && c.HTTP.Addr != "" && !isLoopbackAddr(c.HTTP.Addr) {
		warnings = append(warnings, ValidationWarning{
			Field:   "http.token",
			Message: fmt.Sprintf("HTTP channel on %s has no bearer token", c.HTTP.Addr),
		})
	}

	if registry == nil {
		return warnings
	}
	check := func(field string, names []string) {
		for _, name := range names {
			if _, ok := registry.Get(name); !ok {
				warnings = append(warnings, ValidationWarning{
					Field:   field,
					Message: fmt.Sprintf("tool %q is not registered", name),
				})
			}
		}
	}
	check("tools.allow", c.Tools.Allow)
	check("tools.deny", c.Tools.Deny)
	check("tool_rate_limits.per_tool", sortedKeys(c.ToolRateLimits.PerTool))
	check("tool_rate_limits.cooldown_seconds", sortedKeys(c.ToolRateLimits.CooldownSeconds))
	check("tool_timeouts.per_tool_seconds", sortedKeys(c.ToolTimeouts.PerToolSeconds))

	return warnings
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func isLoopbackAddr(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
