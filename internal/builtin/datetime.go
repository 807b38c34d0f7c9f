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

package builtin

import (
	"context"
	"strconv"
	"strings"
	"time"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/tools"
)

const datetimeToolName = "datetime"

type datetimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone name (default: local time)"`
	Layout   string `json:"layout,omitempty" jsonschema:"description=Go time layout, or unix (default: RFC3339)"`
}

type datetimeResult struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Unix     int64  `json:"unix"`
}

var datetimeOutputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"time":     map[string]any{"type": "string"},
		"timezone": map[string]any{"type": "string"},
		"unix":     map[string]any{"type": "integer"},
	},
	"required": []any{"time", "timezone", "unix"},
}

func newDatetimeTool(now func() time.Time) *tools.StructuredTool {
	return &tools.StructuredTool{
		NameValue:        datetimeToolName,
		DescriptionValue: "Get the current date and time",
		OperationsValue: []tools.Operation{{
			Name:         "now",
			InputSchema:  tools.MustSchemaFor[datetimeArgs](),
			OutputSchema: datetimeOutputSchema,
		}},
		ExecuteFunc: func(ctx context.Context, _ string, input map[string]any) (tools.Envelope, error) {
			if err := ctx.Err(); err != nil {
				return tools.Envelope{}, err
			}
			args, err := tools.DecodeInput[datetimeArgs](input)
			if err != nil {
				return tools.Envelope{}, apperrors.Wrap(apperrors.CodeValidation, "invalid datetime arguments", err)
			}
			return currentDatetime(now(), args)
		},
	}
}

func currentDatetime(now time.Time, args datetimeArgs) (tools.Envelope, error) {
	if tz := strings.TrimSpace(args.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return tools.Envelope{}, apperrors.Wrap(apperrors.CodeValidation, "unknown timezone "+strconv.Quote(tz), err)
		}
		now = now.In(loc)
	}

	var formatted string
	switch layout := strings.TrimSpace(args.Layout); strings.ToLower(layout) {
	case "":
		formatted = now.Format(time.RFC3339)
	case "unix":
		formatted = strconv.FormatInt(now.Unix(), 10)
	default:
		formatted = now.Format(layout)
	}

	result := datetimeResult{
		Time:     formatted,
		Timezone: now.Location().String(),
		Unix:     now.Unix(),
	}
	env := tools.TextResult(formatted)
	env.StructuredContent = result
	return env, nil
}
