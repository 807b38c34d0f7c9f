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

// Package builtin provides the tools shipped with toolhost.
package builtin

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/fsops"
	"toolhost/internal/tools"
)

// Options configures the built-in modules.
type Options struct {
	Timeouts tools.TimeoutConfig
	Logger   zerolog.Logger
	// Now overrides the clock of the datetime tool.
	Now func() time.Time
}

// Modules returns every built-in module. Tools touching the filesystem go
// through fs.
func Modules(fs *fsops.FS, opts Options) []tools.Module {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return []tools.Module{
		newEchoTool(),
		newDatetimeTool(opts.Now),
		newFilesystemTool(fs),
		newCoreutilsTool(fs, opts.Timeouts, opts.Logger),
	}
}

// Adapters fills in the default operation of the multi-operation built-ins
// so bare calls stay valid.
func Adapters() tools.AdapterTable {
	return tools.AdapterTable{
		filesystemToolName: tools.DefaultOperation("list_directory"),
		coreutilsToolName:  tools.DefaultOperation("cat"),
	}
}

// verbOf strips the "tool:" namespace from a legacy subcommand.
func verbOf(tool, subcommand string) (string, error) {
	verb, ok := strings.CutPrefix(subcommand, tool+":")
	if !ok || verb == "" {
		return "", apperrors.Newf(apperrors.CodeValidation, "unexpected subcommand %q", subcommand)
	}
	return verb, nil
}

// Positional argument accessors. Arguments are schema-checked before they
// reach a handler, so a type mismatch here means a direct caller bypassed the
// dispatcher.

func stringAt(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func requireStringAt(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", apperrors.Newf(apperrors.CodeValidation, "missing argument %q", name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", apperrors.Newf(apperrors.CodeValidation, "argument %q must be a string", name)
	}
	return s, nil
}

func intAt(args []any, i int) int {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

func boolAt(args []any, i int) bool {
	if i >= len(args) {
		return false
	}
	b, _ := args[i].(bool)
	return b
}

func stringsAt(args []any, i int) []string {
	if i >= len(args) {
		return nil
	}
	switch v := args[i].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeAt converts a structured positional argument into out.
func decodeAt(args []any, i int, name string, out any) error {
	if i >= len(args) {
		return apperrors.Newf(apperrors.CodeValidation, "missing argument %q", name)
	}
	raw, err := json.Marshal(args[i])
	if err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("argument %q", name), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("argument %q", name), err)
	}
	return nil
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeToolExecution, "failed to encode result", err)
	}
	return string(data), nil
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
