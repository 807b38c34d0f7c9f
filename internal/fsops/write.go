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

package fsops

import (
	"context"
	"os"
	"path/filepath"

	apperrors "toolhost/internal/errors"
)

// WriteFile writes text content, creating missing parent directories.
func (f *FS) WriteFile(ctx context.Context, path, content string) error {
	if err := ensureContext(ctx); err != nil {
		return err
	}
	if int64(len(content)) > f.limits.MaxFileSizeBytes {
		return apperrors.Newf(apperrors.CodeValidation, "content exceeds maximum size of %d bytes", f.limits.MaxFileSizeBytes)
	}
	if !isTextContent([]byte(content)) {
		return apperrors.New(apperrors.CodeValidation, "content must be UTF-8 text without NUL bytes")
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(resolved); err == nil {
		if info.IsDir() {
			return apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is a directory", resolved)
		}
		mode = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return osError("stat", resolved, err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return osError("create parent directories for", resolved, err)
	}
	if err := ensureContext(ctx); err != nil {
		return err
	}
	if err := os.WriteFile(resolved, []byte(content), mode); err != nil {
		return osError("write", resolved, err)
	}
	f.logger.Debug().Str("path", resolved).Int("bytes", len(content)).Msg("file written")
	return nil
}

// CreateDirectory creates path and any missing parents. Creating an existing
// directory succeeds.
func (f *FS) CreateDirectory(ctx context.Context, path string) error {
	if err := ensureContext(ctx); err != nil {
		return err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return osError("create directory", resolved, err)
	}
	return nil
}

// MoveFile renames src to dst. Both paths are resolved before anything on
// disk changes, and an existing destination is never overwritten.
func (f *FS) MoveFile(ctx context.Context, src, dst string) error {
	if err := ensureContext(ctx); err != nil {
		return err
	}
	resolved, err := f.ResolveAll(src, dst)
	if err != nil {
		return err
	}
	from, to := resolved[0], resolved[1]

	if _, err := os.Lstat(from); err != nil {
		return osError("move", from, err)
	}
	if _, err := os.Lstat(to); err == nil {
		return apperrors.Newf(apperrors.CodeToolExecution, "destination '%s' already exists", to)
	} else if !os.IsNotExist(err) {
		return osError("stat", to, err)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return osError("create parent directories for", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return osError("move", from, err)
	}
	f.logger.Debug().Str("from", from).Str("to", to).Msg("file moved")
	return nil
}
