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

// Package fsops implements the file primitives tools use. Every path argument
// passes through the sandbox before any I/O happens.
package fsops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"unicode/utf8"

	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/sandbox"
)

// FS is the sandboxed file operation facade.
type FS struct {
	sandbox *sandbox.Sandbox
	limits  Limits
	logger  zerolog.Logger
}

// Option configures an FS.
type Option func(*FS)

// WithLimits overrides the default limits.
func WithLimits(l Limits) Option {
	return func(f *FS) {
		f.limits = l.Normalize()
	}
}

// WithLogger sets the logger used for skipped entries and diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *FS) {
		f.logger = logger
	}
}

// New returns a facade bound to sb.
func New(sb *sandbox.Sandbox, opts ...Option) *FS {
	f := &FS{
		sandbox: sb,
		limits:  DefaultLimits(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limits returns the active limits.
func (f *FS) Limits() Limits {
	return f.limits
}

// AllowedRoots lists the directories operations may touch.
func (f *FS) AllowedRoots() []string {
	return f.sandbox.Roots()
}

// Resolve exposes sandbox resolution to callers that run their own I/O.
func (f *FS) Resolve(raw string) (string, error) {
	res := f.sandbox.Resolve(raw)
	if !res.OK() {
		return "", res.Err()
	}
	return res.Path, nil
}

// ResolveAll resolves every path or none.
func (f *FS) ResolveAll(raws ...string) ([]string, error) {
	return f.sandbox.ResolveAll(raws...)
}

// osError classifies an OS error by code.
func osError(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("%s %s", op, path), err)
	}
	return apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("%s %s", op, path), err)
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// isTextContent accepts valid UTF-8 without NUL bytes. WriteFile applies the
// same rule, so anything the facade writes can be read back.
func isTextContent(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) == -1
}
