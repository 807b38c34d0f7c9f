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

	"toolhost/internal/tools"
)

const echoToolName = "echo"

func newEchoTool() *tools.StructuredTool {
	return &tools.StructuredTool{
		NameValue:        echoToolName,
		DescriptionValue: "Echo the given text back unchanged",
		OperationsValue: []tools.Operation{{
			Name: "echo",
			InputSchema: objectSchema(map[string]any{
				"text": stringProp("Text to echo"),
			}, "text"),
		}},
		ExecuteFunc: func(_ context.Context, _ string, input map[string]any) (tools.Envelope, error) {
			text, _ := input["text"].(string)
			return tools.TextResult(text), nil
		},
	}
}
