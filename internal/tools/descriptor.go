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
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	apperrors "toolhost/internal/errors"
)

// OperationKey selects the operation of a multi-operation tool.
const OperationKey = "operation"

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Convention names the calling style of a tool.
type Convention string

const (
	ConventionStructured Convention = "structured"
	ConventionLegacy     Convention = "legacy"
)

// EntryPoint is the closed set of calling conventions. It is decided once in
// NewDescriptor.
type EntryPoint interface {
	Convention() Convention
	entryPoint()
}

// StructuredEntry calls a structured module.
type StructuredEntry struct {
	Execute ExecuteFunc
}

func (StructuredEntry) Convention() Convention { return ConventionStructured }
func (StructuredEntry) entryPoint()            {}

// LegacyEntry calls a legacy module.
type LegacyEntry struct {
	OnCommand CommandFunc
}

func (LegacyEntry) Convention() Convention { return ConventionLegacy }
func (LegacyEntry) entryPoint()            {}

// Descriptor is the registry's immutable record of a tool.
type Descriptor struct {
	Name        string
	Description string
	Operations  []Operation
	Entry       EntryPoint

	compiled map[string]compiledOperation
	schema   map[string]any
}

type compiledOperation struct {
	op     Operation
	input  *Validator
	output *Validator
}

// NewDescriptor inspects m once, compiles every operation schema, and fixes
// the calling convention. A module implementing both conventions is treated
// as structured.
func NewDescriptor(m Module) (*Descriptor, error) {
	if m == nil {
		return nil, apperrors.New(apperrors.CodeConfig, "module is nil")
	}
	name := m.Name()
	if !toolNamePattern.MatchString(name) {
		return nil, apperrors.Newf(apperrors.CodeConfig, "invalid tool name %q", name)
	}

	d := &Descriptor{
		Name:        name,
		Description: m.Description(),
		compiled:    map[string]compiledOperation{},
	}
	switch impl := m.(type) {
	case StructuredModule:
		d.Entry = StructuredEntry{Execute: impl.Execute}
	case LegacyModule:
		d.Entry = LegacyEntry{OnCommand: impl.OnCommand}
	default:
		return nil, apperrors.Newf(apperrors.CodeConfig, "tool %s implements neither Execute nor OnCommand", name)
	}

	ops := m.Operations()
	if len(ops) == 0 {
		return nil, apperrors.Newf(apperrors.CodeConfig, "tool %s declares no operations", name)
	}
	for _, op := range ops {
		if strings.TrimSpace(op.Name) == "" {
			return nil, apperrors.Newf(apperrors.CodeConfig, "tool %s has an operation without a name", name)
		}
		if _, dup := d.compiled[op.Name]; dup {
			return nil, apperrors.Newf(apperrors.CodeConfig, "tool %s declares operation %q twice", name, op.Name)
		}
		input, err := CompileSchema(name+"/"+op.Name+"/input", op.InputSchema)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("tool %s operation %s: invalid input schema", name, op.Name), err)
		}
		var output *Validator
		if len(op.OutputSchema) > 0 {
			output, err = CompileSchema(name+"/"+op.Name+"/output", op.OutputSchema)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("tool %s operation %s: invalid output schema", name, op.Name), err)
			}
		}
		op.Params = slices.Clone(op.Params)
		d.compiled[op.Name] = compiledOperation{op: op, input: input, output: output}
		d.Operations = append(d.Operations, op)
	}
	d.schema = buildExportedSchema(d.Operations)
	return d, nil
}

// Convention reports the calling style fixed at construction.
func (d *Descriptor) Convention() Convention {
	return d.Entry.Convention()
}

// Operation returns the named operation.
func (d *Descriptor) Operation(name string) (Operation, bool) {
	c, ok := d.compiled[name]
	return c.op, ok
}

// OperationNames lists operation names in declaration order.
func (d *Descriptor) OperationNames() []string {
	names := make([]string, len(d.Operations))
	for i, op := range d.Operations {
		names[i] = op.Name
	}
	return names
}

// InputSchema is the schema advertised to callers. Multi-operation tools
// expose an "operation" enum plus the union of operation properties.
func (d *Descriptor) InputSchema() map[string]any {
	return d.schema
}

// selectOperation picks the operation for args and returns the argument
// object the operation schema is checked against.
func (d *Descriptor) selectOperation(args map[string]any) (compiledOperation, map[string]any, error) {
	if len(d.Operations) == 1 {
		return d.compiled[d.Operations[0].Name], args, nil
	}
	raw, present := args[OperationKey]
	opName, isString := raw.(string)
	if !present || !isString || opName == "" {
		return compiledOperation{}, nil, &ValidationError{
			Tool: d.Name,
			Fields: []FieldError{{
				Field:   OperationKey,
				Keyword: "required",
				Message: "operation must be one of: " + strings.Join(d.OperationNames(), ", "),
			}},
		}
	}
	c, ok := d.compiled[opName]
	if !ok {
		return compiledOperation{}, nil, &ValidationError{
			Tool: d.Name,
			Fields: []FieldError{{
				Field:   OperationKey,
				Keyword: "enum",
				Message: fmt.Sprintf("unknown operation %q; expected one of: %s", opName, strings.Join(d.OperationNames(), ", ")),
			}},
		}
	}
	input := make(map[string]any, len(args))
	for k, v := range args {
		if k != OperationKey {
			input[k] = v
		}
	}
	return c, input, nil
}

// positional orders input by op.Params for legacy calls. Trailing absent
// arguments are dropped so handlers can rely on len(args).
func positional(op Operation, input map[string]any) []any {
	args := make([]any, len(op.Params))
	last := -1
	for i, name := range op.Params {
		if v, ok := input[name]; ok {
			args[i] = v
			last = i
		}
	}
	return args[:last+1]
}

func buildExportedSchema(ops []Operation) map[string]any {
	if len(ops) == 1 {
		if len(ops[0].InputSchema) == 0 {
			return map[string]any{"type": "object", "properties": map[string]any{}}
		}
		return ops[0].InputSchema
	}

	names := make([]string, 0, len(ops))
	properties := map[string]any{}
	var descriptions []string
	for _, op := range ops {
		names = append(names, op.Name)
		if op.Description != "" {
			descriptions = append(descriptions, op.Name+": "+op.Description)
		}
		props, _ := op.InputSchema["properties"].(map[string]any)
		for key, prop := range props {
			if _, seen := properties[key]; !seen {
				properties[key] = prop
			}
		}
	}
	sort.Strings(descriptions)
	properties[OperationKey] = map[string]any{
		"type":        "string",
		"enum":        names,
		"description": strings.Join(descriptions, "; "),
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{OperationKey},
	}
}

// compile-time checks
var (
	_ StructuredModule = (*StructuredTool)(nil)
	_ LegacyModule     = (*LegacyTool)(nil)
	_ EntryPoint       = StructuredEntry{}
	_ EntryPoint       = LegacyEntry{}
)
