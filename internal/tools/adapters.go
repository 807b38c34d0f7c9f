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

// Adapter rewrites the argument object of one tool before operation
// selection and validation. It receives a private copy and may modify it.
type Adapter func(args map[string]any) map[string]any

// AdapterTable maps tool names to their adapter.
type AdapterTable map[string]Adapter

// DefaultOperation fills in the operation selector when the caller omits it.
func DefaultOperation(op string) Adapter {
	return func(args map[string]any) map[string]any {
		if v, ok := args[OperationKey]; !ok || v == nil || v == "" {
			args[OperationKey] = op
		}
		return args
	}
}

// ChainAdapters runs adapters in order.
func ChainAdapters(adapters ...Adapter) Adapter {
	return func(args map[string]any) map[string]any {
		for _, a := range adapters {
			if a != nil {
				args = a(args)
			}
		}
		return args
	}
}

// Apply runs the adapter registered for name, if any.
func (t AdapterTable) Apply(name string, args map[string]any) map[string]any {
	adapter, ok := t[name]
	if !ok || adapter == nil {
		return args
	}
	if out := adapter(args); out != nil {
		return out
	}
	return args
}

// Merge returns a table holding the entries of t overridden by other.
func (t AdapterTable) Merge(other AdapterTable) AdapterTable {
	merged := make(AdapterTable, len(t)+len(other))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
