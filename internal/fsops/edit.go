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
	"strings"

	apperrors "toolhost/internal/errors"
)

// Edit replaces one occurrence of OldText with NewText.
type Edit struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}

// EditResult reports what an edit run did or would do.
type EditResult struct {
	Path    string   `json:"path"`
	Applied int      `json:"applied"`
	Modes   []string `json:"modes"`
	Changed bool     `json:"changed"`
	DryRun  bool     `json:"dryRun,omitempty"`
	Content string   `json:"content,omitempty"`
}

// EditFile applies edits in order. Each OldText must match exactly one
// location, first literally and then ignoring whitespace differences. If any
// edit fails nothing is written.
func (f *FS) EditFile(ctx context.Context, path string, edits []Edit, dryRun bool) (EditResult, error) {
	if len(edits) == 0 {
		return EditResult{}, apperrors.New(apperrors.CodeValidation, "at least one edit is required")
	}
	if err := ensureContext(ctx); err != nil {
		return EditResult{}, err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return EditResult{}, err
	}
	original, err := f.readResolved(ctx, resolved)
	if err != nil {
		return EditResult{}, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return EditResult{}, osError("stat", resolved, err)
	}

	updated := string(original)
	result := EditResult{Path: resolved, DryRun: dryRun}
	for i, edit := range edits {
		next, mode, err := applyEdit(updated, edit)
		if err != nil {
			return EditResult{}, apperrors.Newf(apperrors.CodeToolExecution, "edit %d: %v", i+1, err)
		}
		updated = next
		result.Modes = append(result.Modes, mode)
	}
	result.Applied = len(edits)
	result.Changed = updated != string(original)

	if int64(len(updated)) > f.limits.MaxFileSizeBytes {
		return EditResult{}, apperrors.Newf(apperrors.CodeToolExecution, "updated file exceeds maximum size of %d bytes", f.limits.MaxFileSizeBytes)
	}
	if !isTextContent([]byte(updated)) {
		return EditResult{}, apperrors.New(apperrors.CodeValidation, "edited content must be UTF-8 text without NUL bytes")
	}
	if dryRun {
		result.Content = updated
		return result, nil
	}
	if !result.Changed {
		return result, nil
	}
	if err := ensureContext(ctx); err != nil {
		return EditResult{}, err
	}
	if err := os.WriteFile(resolved, []byte(updated), info.Mode().Perm()); err != nil {
		return EditResult{}, osError("write", resolved, err)
	}
	return result, nil
}

type editError string

func (e editError) Error() string { return string(e) }

const (
	errEditNotFound  = editError("old text not found")
	errEditAmbiguous = editError("old text matches multiple locations")
)

func applyEdit(content string, edit Edit) (string, string, error) {
	if edit.OldText == "" {
		return "", "", editError("old text cannot be empty")
	}
	if idx := strings.Index(content, edit.OldText); idx != -1 {
		if strings.Contains(content[idx+len(edit.OldText):], edit.OldText) {
			return "", "", errEditAmbiguous
		}
		return content[:idx] + edit.NewText + content[idx+len(edit.OldText):], "exact", nil
	}

	start, end, err := findWhitespaceInsensitiveMatch(content, edit.OldText)
	if err != nil {
		return "", "", err
	}
	matched := content[start:end]
	replacement := reindent(edit.NewText, leadingWhitespace(firstNonEmptyLine(matched)))
	if strings.HasSuffix(matched, "\n") && !strings.HasSuffix(replacement, "\n") {
		replacement += "\n"
	}
	if strings.Contains(matched, "\r\n") {
		replacement = strings.ReplaceAll(strings.ReplaceAll(replacement, "\r\n", "\n"), "\n", "\r\n")
	}
	return content[:start] + replacement + content[end:], "whitespace", nil
}

func findWhitespaceInsensitiveMatch(content, search string) (int, int, error) {
	contentLines, offsets := splitLinesWithOffsets(content)
	searchLines := strings.Split(strings.TrimSuffix(strings.ReplaceAll(search, "\r\n", "\n"), "\n"), "\n")

	matches := 0
	matchIndex := -1
	window := len(searchLines)
	for i := 0; i+window <= len(contentLines); i++ {
		if linesMatch(contentLines[i:i+window], searchLines) {
			matches++
			matchIndex = i
		}
	}
	switch {
	case matches == 0:
		return -1, -1, errEditNotFound
	case matches > 1:
		return -1, -1, errEditAmbiguous
	}

	start := offsets[matchIndex]
	end := len(content)
	if matchIndex+window < len(offsets) {
		end = offsets[matchIndex+window]
	}
	return start, end, nil
}

func splitLinesWithOffsets(text string) ([]string, []int) {
	offsets := []int{0}
	for idx, r := range text {
		if r == '\n' && idx+1 < len(text) {
			offsets = append(offsets, idx+1)
		}
	}
	lines := make([]string, len(offsets))
	for i := range offsets {
		end := len(text)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		lines[i] = text[offsets[i]:end]
	}
	return lines, offsets
}

func linesMatch(contentLines, searchLines []string) bool {
	for i := range contentLines {
		if normalizeLine(contentLines[i]) != normalizeLine(searchLines[i]) {
			return false
		}
	}
	return true
}

func normalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func leadingWhitespace(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}

// reindent shifts replacement so its least indented line starts at indent.
func reindent(replacement, indent string) string {
	lines := strings.Split(replacement, "\n")
	common := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := leadingWhitespace(line)
		if first || len(lead) < len(common) {
			common = lead
			first = false
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = indent + strings.TrimPrefix(line, common)
	}
	return strings.Join(lines, "\n")
}
