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
	"testing"
)

func TestRegisterOverwritesDuplicate(t *testing.T) {
	reg := NewRegistry()
	first, err := NewDescriptor(newEchoTool())
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	second, err := NewDescriptor(newEchoTool())
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	reg.Register("echo", first)
	reg.Register("echo", second)

	if reg.Count() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Count())
	}
	got, ok := reg.Get("echo")
	if !ok || got != second {
		t.Fatal("expected latest descriptor to win")
	}
}

func TestRegisterIgnoresNil(t *testing.T) {
	reg := NewRegistry()
	reg.Register("broken", nil)
	if reg.Count() != 0 {
		t.Fatal("nil descriptor must not be registered")
	}
}

func TestRegisterRejectsMismatchedName(t *testing.T) {
	reg := NewRegistry()
	d, err := NewDescriptor(newEchoTool())
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	reg.Register("alias", d)
	if reg.Count() != 0 {
		t.Fatal("descriptor must not be stored under another name")
	}
	if _, ok := reg.Get("alias"); ok {
		t.Fatal("alias lookup must fail")
	}

	d2 := NewDispatcher(reg)
	env := d2.Dispatch(context.Background(), Command{Name: "alias", Arguments: map[string]any{"text": "hi"}})
	if !env.IsError {
		t.Fatalf("expected unknown tool error, got %+v", env)
	}
}

func TestRegisterModulesSkipsBrokenModules(t *testing.T) {
	reg := NewRegistry()
	broken := &StructuredTool{NameValue: "broken"}
	badName := &StructuredTool{NameValue: "bad name", OperationsValue: []Operation{{Name: "x"}}}
	n := reg.RegisterModules(broken, newEchoTool(), badName)
	if n != 1 {
		t.Fatalf("expected 1 registered module, got %d", n)
	}
	if _, ok := reg.Get("echo"); !ok {
		t.Fatal("healthy module must still register")
	}
}

func TestListIsSorted(t *testing.T) {
	reg := NewRegistry()
	rec := &recordingLegacyTool{}
	reg.RegisterModules(rec.module(), newEchoTool())
	list := reg.List()
	if len(list) != 2 || list[0].Name != "echo" || list[1].Name != "notes" {
		t.Fatalf("unexpected order: %v", reg.Names())
	}
}

type bothConventions struct{ StructuredTool }

func (bothConventions) OnCommand(context.Context, string, []any) (string, error) {
	return "legacy", nil
}

type noConvention struct{}

func (noConvention) Name() string            { return "plain" }
func (noConvention) Description() string     { return "" }
func (noConvention) Operations() []Operation { return []Operation{{Name: "x"}} }

func TestNewDescriptorConvention(t *testing.T) {
	rec := &recordingLegacyTool{}
	tests := []struct {
		name    string
		module  Module
		want    Convention
		wantErr bool
	}{
		{name: "structured", module: newEchoTool(), want: ConventionStructured},
		{name: "legacy", module: rec.module(), want: ConventionLegacy},
		{name: "both prefers structured", module: &bothConventions{StructuredTool{NameValue: "both", OperationsValue: []Operation{{Name: "x"}}}}, want: ConventionStructured},
		{name: "neither", module: noConvention{}, wantErr: true},
		{name: "nil", module: nil, wantErr: true},
		{name: "no operations", module: &StructuredTool{NameValue: "empty"}, wantErr: true},
		{name: "duplicate operation", module: &StructuredTool{NameValue: "dup", OperationsValue: []Operation{{Name: "a"}, {Name: "a"}}}, wantErr: true},
		{name: "invalid schema", module: &StructuredTool{NameValue: "bad", OperationsValue: []Operation{{Name: "a", InputSchema: map[string]any{"type": 12}}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDescriptor(tt.module)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Convention() != tt.want {
				t.Fatalf("convention = %s, want %s", d.Convention(), tt.want)
			}
		})
	}
}

func TestExportedSchemaForMultiOperationTool(t *testing.T) {
	rec := &recordingLegacyTool{}
	d, err := NewDescriptor(rec.module())
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	schema := d.InputSchema()
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("missing properties: %v", schema)
	}
	op, ok := props[OperationKey].(map[string]any)
	if !ok {
		t.Fatal("missing operation property")
	}
	enum, _ := op["enum"].([]string)
	if len(enum) != 2 || enum[0] != "add" || enum[1] != "list" {
		t.Fatalf("unexpected enum: %v", op["enum"])
	}
	for _, key := range []string{"title", "body", "tags"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("expected %q in union of properties", key)
		}
	}
}
