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

package builtin

import (
	"context"
	"fmt"
	"strings"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/fsops"
	"toolhost/internal/tools"
)

const filesystemToolName = "filesystem"

var (
	pathProp     = stringProp("Path inside one of the allowed directories")
	patternsProp = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Glob patterns (doublestar syntax)",
	}
	lineCountProp = func(description string) map[string]any {
		return map[string]any{"type": "integer", "minimum": 1, "description": description}
	}
)

func filesystemOperations() []tools.Operation {
	return []tools.Operation{
		{
			Name:        "read_file",
			Description: "Read a text file, optionally only its first or last lines",
			Params:      []string{"path", "head", "tail"},
			InputSchema: objectSchema(map[string]any{
				"path": pathProp,
				"head": lineCountProp("Return only the first N lines"),
				"tail": lineCountProp("Return only the last N lines"),
			}, "path"),
		},
		{
			Name:        "read_multiple_files",
			Description: "Read several files; failures are reported per file",
			Params:      []string{"paths"},
			InputSchema: objectSchema(map[string]any{
				"paths": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 1,
				},
			}, "paths"),
		},
		{
			Name:        "write_file",
			Description: "Create or overwrite a text file",
			Params:      []string{"path", "content"},
			InputSchema: objectSchema(map[string]any{
				"path":    pathProp,
				"content": stringProp("Content to write"),
			}, "path", "content"),
		},
		{
			Name:        "edit_file",
			Description: "Replace text in a file; every edit must match exactly one location",
			Params:      []string{"path", "edits", "dryRun"},
			InputSchema: objectSchema(map[string]any{
				"path": pathProp,
				"edits": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"oldText": stringProp("Text to search for"),
							"newText": stringProp("Replacement text"),
						},
						"required":             []any{"oldText", "newText"},
						"additionalProperties": false,
					},
				},
				"dryRun": map[string]any{"type": "boolean", "description": "Preview without writing"},
			}, "path", "edits"),
		},
		{
			Name:        "create_directory",
			Description: "Create a directory and any missing parents",
			Params:      []string{"path"},
			InputSchema: objectSchema(map[string]any{"path": pathProp}, "path"),
		},
		{
			Name:        "list_directory",
			Description: "List the entries of a directory",
			Params:      []string{"path"},
			InputSchema: objectSchema(map[string]any{"path": pathProp}, "path"),
		},
		{
			Name:        "directory_tree",
			Description: "Recursive JSON tree of a directory",
			Params:      []string{"path", "excludePatterns"},
			InputSchema: objectSchema(map[string]any{
				"path":            pathProp,
				"excludePatterns": patternsProp,
			}, "path"),
		},
		{
			Name:        "move_file",
			Description: "Move or rename a file or directory",
			Params:      []string{"source", "destination"},
			InputSchema: objectSchema(map[string]any{
				"source":      pathProp,
				"destination": pathProp,
			}, "source", "destination"),
		},
		{
			Name:        "search_files",
			Description: "Find entries whose name, or with contents=true whose lines, contain pattern",
			Params:      []string{"path", "pattern", "excludePatterns", "includePatterns", "contents", "maxResults"},
			InputSchema: objectSchema(map[string]any{
				"path":            pathProp,
				"pattern":         map[string]any{"type": "string", "minLength": 1, "description": "Case-insensitive text to look for"},
				"excludePatterns": patternsProp,
				"includePatterns": patternsProp,
				"contents":        map[string]any{"type": "boolean", "description": "Search file contents instead of names"},
				"maxResults":      lineCountProp("Maximum number of matches"),
			}, "path", "pattern"),
		},
		{
			Name:        "get_file_info",
			Description: "Metadata for a file or directory",
			Params:      []string{"path"},
			InputSchema: objectSchema(map[string]any{"path": pathProp}, "path"),
		},
		{
			Name:        "list_allowed_directories",
			Description: "List the directories this server may access",
			InputSchema: objectSchema(map[string]any{}),
		},
	}
}

type filesystemTool struct {
	fs *fsops.FS
}

func newFilesystemTool(fs *fsops.FS) *tools.LegacyTool {
	t := &filesystemTool{fs: fs}
	return &tools.LegacyTool{
		NameValue:        filesystemToolName,
		DescriptionValue: "Read, write, search and inspect files inside the allowed directories",
		OperationsValue:  filesystemOperations(),
		CommandFunc:      t.onCommand,
	}
}

func (t *filesystemTool) onCommand(ctx context.Context, subcommand string, args []any) (string, error) {
	verb, err := verbOf(filesystemToolName, subcommand)
	if err != nil {
		return "", err
	}

	switch verb {
	case "list_allowed_directories":
		return "Allowed directories:\n" + strings.Join(t.fs.AllowedRoots(), "\n"), nil
	case "read_multiple_files":
		return t.readMultiple(ctx, stringsAt(args, 0)), nil
	case "move_file":
		src, err := requireStringAt(args, 0, "source")
		if err != nil {
			return "", err
		}
		dst, err := requireStringAt(args, 1, "destination")
		if err != nil {
			return "", err
		}
		if err := t.fs.MoveFile(ctx, src, dst); err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully moved %s to %s", src, dst), nil
	}

	path, err := requireStringAt(args, 0, "path")
	if err != nil {
		return "", err
	}
	switch verb {
	case "read_file":
		return t.fs.ReadFileRange(ctx, path, intAt(args, 1), intAt(args, 2))
	case "write_file":
		content, err := requireStringAt(args, 1, "content")
		if err != nil {
			return "", err
		}
		if err := t.fs.WriteFile(ctx, path, content); err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
	case "edit_file":
		var edits []fsops.Edit
		if err := decodeAt(args, 1, "edits", &edits); err != nil {
			return "", err
		}
		result, err := t.fs.EditFile(ctx, path, edits, boolAt(args, 2))
		if err != nil {
			return "", err
		}
		return toJSON(result)
	case "create_directory":
		if err := t.fs.CreateDirectory(ctx, path); err != nil {
			return "", err
		}
		return "Successfully created directory " + path, nil
	case "list_directory":
		entries, err := t.fs.ListDirectory(ctx, path)
		if err != nil {
			return "", err
		}
		return fsops.FormatEntries(entries), nil
	case "directory_tree":
		tree, err := t.fs.DirectoryTree(ctx, path, fsops.TreeOptions{Exclude: stringsAt(args, 1)})
		if err != nil {
			return "", err
		}
		return toJSON(tree)
	case "search_files":
		return t.search(ctx, path, args)
	case "get_file_info":
		info, err := t.fs.GetFileInfo(ctx, path)
		if err != nil {
			return "", err
		}
		return toJSON(info)
	}
	return "", apperrors.Newf(apperrors.CodeValidation, "unknown filesystem operation %q", verb)
}

// readMultiple never fails as a whole; each failed file is reported inline.
func (t *filesystemTool) readMultiple(ctx context.Context, paths []string) string {
	results := t.fs.ReadMultiple(ctx, paths)
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK() {
			parts = append(parts, r.Path+":\n"+r.Content)
			continue
		}
		parts = append(parts, r.Path+": Error - "+r.Error)
	}
	out := strings.Join(parts, "\n---\n")
	if err := fsops.BatchError(results); err != nil {
		out += "\n---\n" + err.Error()
	}
	return out
}

func (t *filesystemTool) search(ctx context.Context, path string, args []any) (string, error) {
	query := stringAt(args, 1)
	opts := fsops.SearchOptions{
		Exclude:    stringsAt(args, 2),
		Include:    stringsAt(args, 3),
		Contents:   boolAt(args, 4),
		MaxResults: intAt(args, 5),
	}
	matches, err := t.fs.SearchFiles(ctx, path, query, opts)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No matches found", nil
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Line > 0 {
			lines = append(lines, fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text))
			continue
		}
		lines = append(lines, m.Path)
	}
	return strings.Join(lines, "\n"), nil
}
