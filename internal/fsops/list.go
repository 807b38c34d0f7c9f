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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	apperrors "toolhost/internal/errors"
)

// Entry types reported by listings.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeSymlink   = "symlink"
	TypeOther     = "other"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// TreeNode is one node of a recursive directory tree.
type TreeNode struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Children  []*TreeNode `json:"children,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
}

// TreeOptions filters a directory tree.
type TreeOptions struct {
	// Exclude holds doublestar patterns matched against slash-separated paths
	// relative to the tree root, and against bare entry names.
	Exclude []string
}

func entryType(mode fs.FileMode) string {
	switch {
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	case mode.IsRegular():
		return TypeFile
	default:
		return TypeOther
	}
}

// ListDirectory returns the immediate children of a directory sorted by name.
func (f *FS) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, osError("list", resolved, err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is not a directory", resolved)
	}
	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, osError("list", resolved, err)
	}
	if len(dirEntries) > f.limits.MaxDirectoryEntries {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "directory contains more than %d entries", f.limits.MaxDirectoryEntries)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ensureContext(ctx); err != nil {
			return nil, err
		}
		entry := Entry{
			Name: de.Name(),
			Path: filepath.Join(resolved, de.Name()),
			Type: entryType(de.Type()),
		}
		if info, err := de.Info(); err == nil {
			entry.Size = info.Size()
			entry.ModTime = info.ModTime()
		} else {
			f.logger.Debug().Str("path", entry.Path).Err(err).Msg("entry info unavailable")
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// FormatEntries renders a listing as one line per entry.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "Directory is empty"
	}
	var b strings.Builder
	for _, e := range entries {
		marker := "[FILE]"
		switch e.Type {
		case TypeDirectory:
			marker = "[DIR] "
		case TypeSymlink:
			marker = "[LINK]"
		case TypeOther:
			marker = "[OTHER]"
		}
		size := ""
		if e.Type == TypeFile {
			size = humanize.IBytes(uint64(e.Size))
		}
		fmt.Fprintf(&b, "%s %-40s %10s\n", marker, e.Name, size)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DirectoryTree walks path recursively. Entries that fail sandbox resolution
// or cannot be read are logged and skipped. Symlinked directories are not
// descended into.
func (f *FS) DirectoryTree(ctx context.Context, path string, opts TreeOptions) (*TreeNode, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, osError("tree", resolved, err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is not a directory", resolved)
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, apperrors.Newf(apperrors.CodeValidation, "invalid exclude pattern %q", pattern)
		}
	}

	w := &treeWalker{fs: f, root: resolved, exclude: opts.Exclude}
	root := &TreeNode{Name: filepath.Base(resolved), Type: TypeDirectory}
	if err := w.walk(ctx, resolved, root, 1); err != nil {
		return nil, err
	}
	return root, nil
}

type treeWalker struct {
	fs      *FS
	root    string
	exclude []string
	count   int
}

func (w *treeWalker) walk(ctx context.Context, dir string, node *TreeNode, depth int) error {
	if depth > w.fs.limits.MaxDirectoryDepth {
		node.Truncated = true
		return nil
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		w.fs.logger.Warn().Str("path", dir).Err(err).Msg("skipping unreadable directory")
		return nil
	}
	for _, de := range dirEntries {
		if err := ensureContext(ctx); err != nil {
			return err
		}
		child := filepath.Join(dir, de.Name())
		if w.excluded(child, de.Name()) {
			continue
		}
		if res := w.fs.sandbox.Resolve(child); !res.OK() {
			w.fs.logger.Warn().Str("path", child).Str("reason", res.Reason).Msg("skipping entry outside allowed roots")
			continue
		}
		if w.count >= w.fs.limits.MaxDirectoryEntries {
			node.Truncated = true
			return nil
		}
		w.count++

		childNode := &TreeNode{Name: de.Name(), Type: entryType(de.Type())}
		node.Children = append(node.Children, childNode)
		if childNode.Type == TypeDirectory {
			if err := w.walk(ctx, child, childNode, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *treeWalker) excluded(path, name string) bool {
	return matchesAny(w.exclude, w.root, path, name)
}

// matchesAny reports whether the path relative to root, or the bare name,
// matches one of patterns.
func matchesAny(patterns []string, root, path, name string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
