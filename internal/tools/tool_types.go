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

import "context"

// Operation is one named entry of a tool. Params lists argument names in the
// positional order handed to legacy-style tools.
type Operation struct {
	Name         string
	Description  string
	Params       []string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// Module is an independently implemented tool. A module must also implement
// StructuredModule or LegacyModule to be callable.
type Module interface {
	Name() string
	Description() string
	Operations() []Operation
}

// StructuredModule receives the validated argument object and builds the
// envelope itself.
type StructuredModule interface {
	Module
	Execute(ctx context.Context, operation string, input map[string]any) (Envelope, error)
}

// LegacyModule receives a namespaced subcommand ("tool:verb") and positional
// arguments, and returns plain text.
type LegacyModule interface {
	Module
	OnCommand(ctx context.Context, subcommand string, args []any) (string, error)
}

// ExecuteFunc implements a structured operation.
type ExecuteFunc func(ctx context.Context, operation string, input map[string]any) (Envelope, error)

// CommandFunc implements a legacy subcommand handler.
type CommandFunc func(ctx context.Context, subcommand string, args []any) (string, error)

// StructuredTool provides a default implementation of StructuredModule.
type StructuredTool struct {
	NameValue        string
	DescriptionValue string
	OperationsValue  []Operation
	ExecuteFunc      ExecuteFunc
}

func (t *StructuredTool) Name() string            { return t.NameValue }
func (t *StructuredTool) Description() string     { return t.DescriptionValue }
func (t *StructuredTool) Operations() []Operation { return t.OperationsValue }

func (t *StructuredTool) Execute(ctx context.Context, operation string, input map[string]any) (Envelope, error) {
	if t.ExecuteFunc == nil {
		return TextResult(), nil
	}
	return t.ExecuteFunc(ctx, operation, input)
}

// LegacyTool provides a default implementation of LegacyModule.
type LegacyTool struct {
	NameValue        string
	DescriptionValue string
	OperationsValue  []Operation
	CommandFunc      CommandFunc
}

func (t *LegacyTool) Name() string            { return t.NameValue }
func (t *LegacyTool) Description() string     { return t.DescriptionValue }
func (t *LegacyTool) Operations() []Operation { return t.OperationsValue }

func (t *LegacyTool) OnCommand(ctx context.Context, subcommand string, args []any) (string, error) {
	if t.CommandFunc == nil {
		return "", nil
	}
	return t.CommandFunc(ctx, subcommand, args)
}
