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
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/tools"
)

// SchemaJSON returns the JSON schema for the configuration file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config accepted by the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

var (
	schemaOnce      sync.Once
	schemaValidator *tools.Validator
	schemaErr       error
)

func configValidator() (*tools.Validator, error) {
	schemaOnce.Do(func() {
		var doc map[string]any
		if err := json.Unmarshal([]byte(configSchemaJSON), &doc); err != nil {
			schemaErr = err
			return
		}
		schemaValidator, schemaErr = tools.CompileSchema("config", doc)
	})
	return schemaValidator, schemaErr
}

// yamlToJSON re-encodes a YAML document as JSON so both formats go through
// the same schema check.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(raw)
}

// normalizeConfigJSON checks a raw document against the config schema and
// returns it ready for decoding.
func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "config is not a JSON object", err)
	}
	validator, err := configValidator()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "config schema does not compile", err)
	}
	if fields := validator.Validate(raw); len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			name := f.Field
			if name == "" {
				name = "(root)"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", name, f.Message))
		}
		return nil, apperrors.New(apperrors.CodeConfig, "invalid configuration: "+strings.Join(parts, "; "))
	}
	return json.Marshal(raw)
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "toolhost config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "allowed_roots": { "type": "array", "items": { "type": "string", "minLength": 1 } },
    "log_level": { "enum": ["trace", "debug", "info", "warn", "error", "disabled"] },
    "http": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "addr": { "type": "string" },
        "token": { "type": "string" }
      }
    },
    "tools": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "allow": { "type": "array", "items": { "type": "string" } },
        "deny": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_limits": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_file_size_bytes": { "type": "integer", "minimum": 0 },
        "max_directory_depth": { "type": "integer", "minimum": 0 },
        "max_directory_entries": { "type": "integer", "minimum": 0 },
        "max_search_results": { "type": "integer", "minimum": 0 },
        "batch_concurrency": { "type": "integer", "minimum": 0 }
      }
    },
    "tool_rate_limits": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_per_minute": { "type": "integer", "minimum": 0 },
        "per_tool": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } },
        "cooldown_seconds": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_seconds": { "type": "integer", "minimum": 0 },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "integer", "minimum": 0 } }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_chars": { "type": "integer", "minimum": 0 },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": { "type": "boolean" },
        "output": { "type": "string" }
      }
    }
  }
}`

const exampleConfigJSON = `{
  "allowed_roots": ["~/projects"],
  "log_level": "info",
  "http": { "addr": "127.0.0.1:8080" },
  "tools": { "deny": ["coreutils"] },
  "tool_limits": { "max_file_size_bytes": 10485760 },
  "tool_rate_limits": { "per_tool": { "filesystem": 120 } },
  "tool_timeouts": { "per_tool_seconds": { "coreutils": 10 } }
}`
