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
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "toolhost/internal/errors"
)

// SearchOptions narrows a recursive search.
type SearchOptions struct {
	// Include, when set, restricts matches to files whose relative path or
	// name matches one of these doublestar patterns.
	Include []string
	// Exclude drops files and whole directories matching these patterns.
	Exclude []string
	// Contents searches file lines instead of entry names.
	Contents   bool
	MaxResults int
}

// Match is one search hit. Line and Text are set for content matches.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

var errSearchLimit = errors.New("search result limit reached")

// SearchFiles looks for query, case-insensitively, below root. Entries that
// fail sandbox resolution or OS access are logged and skipped.
func (f *FS) SearchFiles(ctx context.Context, root, query string, opts SearchOptions) ([]Match, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "search query cannot be empty")
	}
	for _, pattern := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, apperrors.Newf(apperrors.CodeValidation, "invalid glob pattern %q", pattern)
		}
	}
	resolved, err := f.Resolve(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, osError("search", resolved, err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is not a directory", resolved)
	}

	limit := opts.MaxResults
	if limit <= 0 || limit > f.limits.MaxSearchResults {
		limit = f.limits.MaxSearchResults
	}
	needle := strings.ToLower(query)
	var matches []Match

	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ensureContext(ctx); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			f.logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() && path != resolved {
				return filepath.SkipDir
			}
			return nil
		}
		if path == resolved {
			return nil
		}
		if res := f.sandbox.Resolve(path); !res.OK() {
			f.logger.Warn().Str("path", path).Str("reason", res.Reason).Msg("skipping entry outside allowed roots")
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(opts.Exclude, resolved, path, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if depth, _ := depthFromBase(resolved, path); depth >= f.limits.MaxDirectoryDepth {
				return filepath.SkipDir
			}
		}
		if len(opts.Include) > 0 && !d.IsDir() && !matchesAny(opts.Include, resolved, path, d.Name()) {
			return nil
		}

		if !opts.Contents {
			if strings.Contains(strings.ToLower(d.Name()), needle) {
				matches = append(matches, Match{Path: path})
			}
		} else if d.Type().IsRegular() {
			matches = f.searchContents(path, needle, matches, limit)
		}
		if len(matches) >= limit {
			return errSearchLimit
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errSearchLimit) {
		return nil, walkErr
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *FS) searchContents(path, needle string, matches []Match, limit int) []Match {
	info, err := os.Stat(path)
	if err != nil || info.Size() > f.limits.MaxFileSizeBytes {
		return matches
	}
	file, err := os.Open(path)
	if err != nil {
		f.logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable file")
		return matches
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	if bytes.IndexByte(head[:n], 0) != -1 {
		return matches
	}
	if _, err := file.Seek(0, 0); err != nil {
		return matches
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.Contains(strings.ToLower(text), needle) {
			matches = append(matches, Match{Path: path, Line: line, Text: strings.TrimSpace(text)})
			if len(matches) >= limit {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		f.logger.Warn().Str("path", path).Int("line", line+1).Err(err).Msg("stopped searching file")
	}
	return matches
}

func depthFromBase(basePath, filePath string) (int, error) {
	rel, err := filepath.Rel(basePath, filePath)
	if err != nil {
		return 0, err
	}
	if rel == "." {
		return 0, nil
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1, nil
}
