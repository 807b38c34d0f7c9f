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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "toolhost/internal/errors"
)

// ContentBlock is one item of an envelope's content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the uniform result of every dispatched command. IsError is the
// only failure signal that crosses the channel boundary.
type Envelope struct {
	Content           []ContentBlock `json:"content"`
	IsError           bool           `json:"isError,omitempty"`
	StructuredContent any            `json:"structuredContent,omitempty"`
}

// ErrorDetail is the structured content attached to error envelopes.
type ErrorDetail struct {
	Code      apperrors.Code `json:"code"`
	Tool      string         `json:"tool,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Message   string         `json:"message"`
	Fields    []FieldError   `json:"fields,omitempty"`
}

// TextResult builds a successful envelope with one text block per argument.
func TextResult(texts ...string) Envelope {
	blocks := make([]ContentBlock, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, ContentBlock{Type: "text", Text: text})
	}
	return Envelope{Content: blocks}
}

// JSONResult renders v as indented JSON text and keeps v as structured content.
func JSONResult(v any) (Envelope, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Envelope{}, apperrors.Wrap(apperrors.CodeToolExecution, "failed to encode result", err)
	}
	env := TextResult(string(data))
	env.StructuredContent = v
	return env, nil
}

// ErrorResult converts err into an error envelope naming tool.
func ErrorResult(tool string, err error) Envelope {
	detail := ErrorDetail{
		Code:    apperrors.CodeToolExecution,
		Tool:    tool,
		Message: err.Error(),
	}
	if code, ok := apperrors.CodeOf(err); ok {
		detail.Code = code
	}
	var verr *ValidationError
	if detail.Code == apperrors.CodeValidation && errors.As(err, &verr) {
		detail.Operation = verr.Operation
		detail.Fields = verr.Fields
	}

	text := fmt.Sprintf("Error executing tool %s: %v", tool, err)
	if tool == "" {
		text = "Error: " + err.Error()
	}
	return Envelope{
		Content:           []ContentBlock{{Type: "text", Text: text}},
		IsError:           true,
		StructuredContent: detail,
	}
}

// Text joins the text blocks of the envelope.
func (e Envelope) Text() string {
	parts := make([]string, 0, len(e.Content))
	for _, block := range e.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (e Envelope) normalized() Envelope {
	if e.Content == nil {
		e.Content = []ContentBlock{}
	}
	return e
}
