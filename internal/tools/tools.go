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
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds tool descriptors by name. It is filled at startup and read
// by the dispatcher afterwards.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Descriptor
	logger zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registration warnings.
func WithRegistryLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]*Descriptor),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores d under name. A duplicate name replaces the earlier entry
// with a warning. A nil descriptor, or one whose own name differs from name,
// is logged and ignored so the legacy "tool:verb" namespace always matches
// the name callers dispatch by.
func (r *Registry) Register(name string, d *Descriptor) {
	if d == nil {
		r.logger.Warn().Str("tool", name).Msg("ignoring nil tool descriptor")
		return
	}
	if d.Name != name {
		r.logger.Warn().Str("tool", name).Str("descriptor", d.Name).Msg("ignoring tool registered under a different name")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn().Str("tool", name).Msg("tool already registered, overwriting")
	}
	r.tools[name] = d
}

// RegisterModules builds a descriptor for every module and registers it under
// the module's name. Modules that fail to build are logged and skipped. It
// returns the number registered.
func (r *Registry) RegisterModules(mods ...Module) int {
	registered := 0
	for _, m := range mods {
		d, err := NewDescriptor(m)
		if err != nil {
			r.logger.Error().Err(err).Msg("skipping tool module")
			continue
		}
		r.Register(d.Name, d)
		registered++
	}
	return registered
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns every descriptor sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
