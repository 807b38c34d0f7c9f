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
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "toolhost/internal/errors"
)

// ReadResult is one item of a batch read. Exactly one of Content or Err is
// meaningful.
type ReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// OK reports whether the item was read.
func (r ReadResult) OK() bool {
	return r.Err == nil
}

// ReadFile returns the text content of a file.
func (f *FS) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := f.readResolved(ctx, resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadFileRange returns the first head lines or the last tail lines of a
// file. At most one of head and tail may be positive.
func (f *FS) ReadFileRange(ctx context.Context, path string, head, tail int) (string, error) {
	if head > 0 && tail > 0 {
		return "", apperrors.New(apperrors.CodeValidation, "head and tail cannot be combined")
	}
	content, err := f.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	if head <= 0 && tail <= 0 {
		return content, nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if head > 0 && head < len(lines) {
		lines = lines[:head]
	}
	if tail > 0 && tail < len(lines) {
		lines = lines[len(lines)-tail:]
	}
	return strings.Join(lines, ""), nil
}

func (f *FS) readResolved(ctx context.Context, resolved string) ([]byte, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, osError("read", resolved, err)
	}
	if info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is a directory", resolved)
	}
	if info.Size() > f.limits.MaxFileSizeBytes {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "file exceeds maximum size of %d bytes", f.limits.MaxFileSizeBytes)
	}
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, osError("read", resolved, err)
	}
	if !isTextContent(data) {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "file '%s' appears to be binary", resolved)
	}
	return data, nil
}

// ReadMultiple reads every path independently. It returns one result per
// input in input order and never fails as a whole.
func (f *FS) ReadMultiple(ctx context.Context, paths []string) []ReadResult {
	results := make([]ReadResult, len(paths))
	var g errgroup.Group
	g.SetLimit(f.limits.BatchConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			content, err := f.ReadFile(ctx, path)
			results[i] = ReadResult{Path: path, Content: content, Err: err}
			if err != nil {
				results[i].Error = err.Error()
				f.logger.Debug().Str("path", path).Err(err).Msg("batch read item failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BatchError summarizes failed items of a batch as a partial_failure error,
// or returns nil when every item succeeded.
func BatchError(results []ReadResult) error {
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return apperrors.New(apperrors.CodePartialFailure, fmt.Sprintf("%d of %d files could not be read", failed, len(results)))
}
