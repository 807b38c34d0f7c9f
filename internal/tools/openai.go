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

package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "toolhost/internal/errors"
)

// OpenAITools returns one function definition per registered tool.
func (d *Dispatcher) OpenAITools() []openai.Tool {
	descs := d.registry.List()
	defs := make([]openai.Tool, 0, len(descs))
	for _, desc := range descs {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        desc.Name,
				Description: desc.Description,
				Parameters:  desc.InputSchema(),
			},
		})
	}
	return defs
}

// DispatchOpenAIToolCall decodes a model tool call and dispatches it.
func (d *Dispatcher) DispatchOpenAIToolCall(ctx context.Context, call openai.ToolCall) Envelope {
	name := call.Function.Name
	if name == "" {
		return ErrorResult("", apperrors.New(apperrors.CodeValidation, "tool call missing function name"))
	}
	args := map[string]any{}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return ErrorResult(name, apperrors.Wrap(apperrors.CodeValidation, ErrInvalidArguments.Error(), err))
		}
	}
	return d.Dispatch(ctx, Command{Name: name, Arguments: args})
}

// ToolMessage wraps an envelope as the tool reply for call.
func ToolMessage(call openai.ToolCall, env Envelope) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    env.Text(),
		Name:       call.Function.Name,
		ToolCallID: call.ID,
	}
}
