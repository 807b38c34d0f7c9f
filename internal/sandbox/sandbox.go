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

// Package sandbox decides whether a filesystem path may be touched by a tool.
package sandbox

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/paths"
)

// Verdict is the outcome of resolving a path.
type Verdict int

const (
	// Rejected is the zero value so an unset Resolution never grants access.
	Rejected Verdict = iota
	Accepted
)

func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Resolution is the result of evaluating one raw path against the roots.
// Path is set only when accepted, Reason only when rejected.
type Resolution struct {
	Verdict Verdict
	Raw     string
	Path    string
	Reason  string
}

// OK reports whether the path was accepted.
func (r Resolution) OK() bool {
	return r.Verdict == Accepted
}

// Err returns an access_denied error for a rejected resolution and nil otherwise.
func (r Resolution) Err() error {
	if r.OK() {
		return nil
	}
	reason := r.Reason
	if reason == "" {
		reason = "path not resolved"
	}
	return apperrors.Newf(apperrors.CodeAccessDenied, "access denied for %q: %s", r.Raw, reason)
}

// Sandbox holds the allowed roots fixed at startup.
type Sandbox struct {
	roots  []string
	logger zerolog.Logger
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithLogger sets the logger used for rejection diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

// New normalizes roots and returns a sandbox. An empty list is valid and
// rejects every path.
func New(roots []string, opts ...Option) (*Sandbox, error) {
	s := &Sandbox{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	for _, entry := range roots {
		if strings.TrimSpace(entry) == "" {
			return nil, apperrors.New(apperrors.CodeConfig, "allowed root cannot be empty")
		}
		resolved, err := paths.ResolveRoot(entry)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid allowed root %q", entry), err)
		}
		if !slices.Contains(s.roots, resolved) {
			s.roots = append(s.roots, resolved)
		}
	}
	return s, nil
}

// Roots returns a copy of the normalized allowed roots.
func (s *Sandbox) Roots() []string {
	return slices.Clone(s.roots)
}

// Resolve evaluates raw against the allowed roots. It is recomputed on every
// call because both the roots' contents and symlinks can change.
func (s *Sandbox) Resolve(raw string) Resolution {
	res := s.resolve(raw)
	if !res.OK() {
		s.logger.Debug().Str("path", raw).Str("reason", res.Reason).Msg("path rejected")
	}
	return res
}

func (s *Sandbox) resolve(raw string) Resolution {
	res := Resolution{Raw: raw}
	if len(s.roots) == 0 {
		res.Reason = "no allowed roots configured"
		return res
	}
	if err := paths.ValidatePathString(raw, paths.MaxPathLength); err != nil {
		res.Reason = err.Error()
		return res
	}
	normalized, err := paths.Normalize(raw)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	// Roots are stored resolved, so only the resolved path is compared.
	resolved, err := paths.ResolveSymlinkedPath(normalized)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	if !s.within(resolved) {
		res.Reason = "path is outside every allowed root"
		if resolved != normalized {
			res.Reason = "path resolves through a symlink outside every allowed root"
		}
		return res
	}
	res.Verdict = Accepted
	res.Path = resolved
	return res
}

func (s *Sandbox) within(path string) bool {
	for _, root := range s.roots {
		if paths.HasPathPrefix(path, root) {
			return true
		}
	}
	return false
}

// ResolveAll resolves every raw path and fails on the first rejection, so
// callers can validate all inputs before performing any side effect.
func (s *Sandbox) ResolveAll(raws ...string) ([]string, error) {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		res := s.Resolve(raw)
		if !res.OK() {
			return nil, res.Err()
		}
		out = append(out, res.Path)
	}
	return out, nil
}

