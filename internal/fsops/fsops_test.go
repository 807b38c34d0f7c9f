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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/sandbox"
)

func newTestFS(t *testing.T, opts ...Option) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	sb, err := sandbox.New([]string{root})
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	return New(sb, opts...), root
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fsys, root := newTestFS(t)
	ctx := context.Background()
	contents := []string{
		"",
		"hello\n",
		"line1\r\nline2",
		"unicode ✓ ünïcödé",
		strings.Repeat("x", 70000),
		"\x1b[31mred\x1b[0m\x01\x02\x03\x04",
		strings.Repeat("\x07", 100),
	}
	for i, content := range contents {
		path := filepath.Join(root, "nested", "dir", "file"+string(rune('a'+i))+".txt")
		if err := fsys.WriteFile(ctx, path, content); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		got, err := fsys.ReadFile(ctx, path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if got != content {
			t.Fatalf("round trip mismatch for case %d", i)
		}
	}
}

func TestWriteRejectsOutsideRoot(t *testing.T) {
	fsys, root := newTestFS(t)
	target := filepath.Join(filepath.Dir(root), "escape.txt")
	err := fsys.WriteFile(context.Background(), target, "x")
	if !apperrors.HasCode(err, apperrors.CodeAccessDenied) {
		t.Fatalf("expected access_denied, got %v", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatal("file outside root must not be created")
	}
}

func TestWriteRejectsOversizedContent(t *testing.T) {
	fsys, root := newTestFS(t, WithLimits(Limits{MaxFileSizeBytes: 4}))
	if err := fsys.WriteFile(context.Background(), filepath.Join(root, "big"), "12345"); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestWriteRejectsUnreadableContent(t *testing.T) {
	fsys, root := newTestFS(t)
	for name, content := range map[string]string{
		"nul":          "abc\x00def",
		"invalid utf8": "abc\xffdef",
	} {
		path := filepath.Join(root, strings.ReplaceAll(name, " ", "_"))
		err := fsys.WriteFile(context.Background(), path, content)
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Fatalf("%s: rejected content must not create a file", name)
		}
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	fsys, root := newTestFS(t)
	_, err := fsys.ReadFile(context.Background(), filepath.Join(root, "missing.txt"))
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestReadRejectsBinary(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "bin")
	writeTestFile(t, path, "abc\x00def")
	if _, err := fsys.ReadFile(context.Background(), path); err == nil {
		t.Fatal("expected binary content to be rejected")
	}
}

func TestReadFileRange(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "lines.txt")
	writeTestFile(t, path, "1\n2\n3\n4\n5\n")
	ctx := context.Background()

	head, err := fsys.ReadFileRange(ctx, path, 2, 0)
	if err != nil || head != "1\n2\n" {
		t.Fatalf("head = %q, %v", head, err)
	}
	tail, err := fsys.ReadFileRange(ctx, path, 0, 2)
	if err != nil || tail != "4\n5\n" {
		t.Fatalf("tail = %q, %v", tail, err)
	}
	if _, err := fsys.ReadFileRange(ctx, path, 1, 1); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDirectoryIdempotent(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "a", "b")
	for i := 0; i < 2; i++ {
		if err := fsys.CreateDirectory(context.Background(), path); err != nil {
			t.Fatalf("CreateDirectory call %d: %v", i+1, err)
		}
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		t.Fatalf("expected directory, got %v", err)
	}
}

func TestReadMultipleReportsPerItem(t *testing.T) {
	fsys, root := newTestFS(t)
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	writeTestFile(t, a, "alpha")
	writeTestFile(t, b, "beta")
	outside := filepath.Join(filepath.Dir(root), "nope.txt")

	results := fsys.ReadMultiple(context.Background(), []string{a, outside, b, filepath.Join(root, "missing")})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].OK() || results[0].Content != "alpha" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].OK() || results[1].Error == "" || !apperrors.HasCode(results[1].Err, apperrors.CodeAccessDenied) {
		t.Fatalf("expected access denied for second item: %+v", results[1])
	}
	if !results[2].OK() || results[2].Content != "beta" {
		t.Fatalf("unexpected third result: %+v", results[2])
	}
	if results[3].OK() {
		t.Fatal("expected missing file to fail")
	}
	if !apperrors.HasCode(BatchError(results), apperrors.CodePartialFailure) {
		t.Fatal("expected partial failure summary")
	}
	if BatchError(results[:1]) != nil {
		t.Fatal("expected no batch error for all-successful items")
	}
}

func TestMoveValidatesBothPathsFirst(t *testing.T) {
	fsys, root := newTestFS(t)
	src := filepath.Join(root, "src.txt")
	writeTestFile(t, src, "payload")
	outside := filepath.Join(filepath.Dir(root), "moved.txt")

	err := fsys.MoveFile(context.Background(), src, outside)
	if !apperrors.HasCode(err, apperrors.CodeAccessDenied) {
		t.Fatalf("expected access_denied, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must remain after rejected move: %v", err)
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Fatal("destination outside root must not exist")
	}
}

func TestMoveFile(t *testing.T) {
	fsys, root := newTestFS(t)
	src := filepath.Join(root, "src.txt")
	dst := filepath.Join(root, "sub", "dst.txt")
	writeTestFile(t, src, "payload")

	if err := fsys.MoveFile(context.Background(), src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("moved content = %q, %v", data, err)
	}

	writeTestFile(t, src, "again")
	if err := fsys.MoveFile(context.Background(), src, dst); err == nil {
		t.Fatal("expected existing destination to be refused")
	}
}

func TestListDirectory(t *testing.T) {
	fsys, root := newTestFS(t)
	writeTestFile(t, filepath.Join(root, "b.txt"), "bb")
	writeTestFile(t, filepath.Join(root, "a.txt"), "a")
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	entries, err := fsys.ListDirectory(context.Background(), root+string(os.PathSeparator))
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name+":"+e.Type)
	}
	want := []string{"a.txt:file", "b.txt:file", "dir:directory"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if out := FormatEntries(entries); !strings.Contains(out, "[DIR]  dir") {
		t.Fatalf("unexpected formatting:\n%s", out)
	}
}

func TestDirectoryTreeSkipsEscapingSymlink(t *testing.T) {
	fsys, root := newTestFS(t)
	writeTestFile(t, filepath.Join(root, "src", "main.go"), "package main")
	writeTestFile(t, filepath.Join(root, "node_modules", "x.js"), "x")
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	tree, err := fsys.DirectoryTree(context.Background(), root, TreeOptions{Exclude: []string{"node_modules"}})
	if err != nil {
		t.Fatalf("DirectoryTree: %v", err)
	}
	want := &TreeNode{
		Name: filepath.Base(root),
		Type: TypeDirectory,
		Children: []*TreeNode{
			{Name: "src", Type: TypeDirectory, Children: []*TreeNode{{Name: "main.go", Type: TypeFile}}},
		},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectoryTreeDepthLimit(t *testing.T) {
	fsys, root := newTestFS(t, WithLimits(Limits{MaxDirectoryDepth: 1}))
	writeTestFile(t, filepath.Join(root, "a", "b", "c.txt"), "c")
	tree, err := fsys.DirectoryTree(context.Background(), root, TreeOptions{})
	if err != nil {
		t.Fatalf("DirectoryTree: %v", err)
	}
	if len(tree.Children) != 1 || !tree.Children[0].Truncated || len(tree.Children[0].Children) != 0 {
		t.Fatalf("expected truncated subdirectory, got %+v", tree.Children)
	}
}

func TestSearchFilesByName(t *testing.T) {
	fsys, root := newTestFS(t)
	writeTestFile(t, filepath.Join(root, "Report.md"), "r")
	writeTestFile(t, filepath.Join(root, "docs", "report.txt"), "r")
	writeTestFile(t, filepath.Join(root, "vendor", "report.go"), "r")
	writeTestFile(t, filepath.Join(root, "other.md"), "o")

	matches, err := fsys.SearchFiles(context.Background(), root, "REPORT", SearchOptions{Exclude: []string{"vendor"}})
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	var got []string
	for _, m := range matches {
		rel, _ := filepath.Rel(root, m.Path)
		got = append(got, filepath.ToSlash(rel))
	}
	want := []string{"Report.md", "docs/report.txt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}

	matches, err = fsys.SearchFiles(context.Background(), root, "report", SearchOptions{Include: []string{"**/*.txt"}})
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	if len(matches) != 1 || filepath.Base(matches[0].Path) != "report.txt" {
		t.Fatalf("unexpected include result: %+v", matches)
	}
}

func TestSearchFilesContents(t *testing.T) {
	fsys, root := newTestFS(t)
	writeTestFile(t, filepath.Join(root, "a.txt"), "first\nNeedle here\nlast\n")
	writeTestFile(t, filepath.Join(root, "b.bin"), "needle\x00binary")

	matches, err := fsys.SearchFiles(context.Background(), root, "needle", SearchOptions{Contents: true})
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	want := []Match{{Path: filepath.Join(root, "a.txt"), Line: 2, Text: "Needle here"}}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchFilesContinuesPastOverlongLine(t *testing.T) {
	var logs bytes.Buffer
	fsys, root := newTestFS(t, WithLogger(zerolog.New(&logs)))
	writeTestFile(t, filepath.Join(root, "a.txt"), "needle early\n"+strings.Repeat("x", 2<<20)+"\nneedle late\n")
	writeTestFile(t, filepath.Join(root, "c.txt"), "needle again\n")

	matches, err := fsys.SearchFiles(context.Background(), root, "needle", SearchOptions{Contents: true})
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	want := []Match{
		{Path: filepath.Join(root, "a.txt"), Line: 1, Text: "needle early"},
		{Path: filepath.Join(root, "c.txt"), Line: 1, Text: "needle again"},
	}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "stopped searching file") {
		t.Fatalf("expected the skipped remainder to be logged, got %q", logs.String())
	}
}

func TestSearchFilesValidation(t *testing.T) {
	fsys, root := newTestFS(t)
	ctx := context.Background()
	if _, err := fsys.SearchFiles(ctx, root, " ", SearchOptions{}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for empty query, got %v", err)
	}
	if _, err := fsys.SearchFiles(ctx, root, "x", SearchOptions{Include: []string{"[bad"}}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for bad pattern, got %v", err)
	}
}

func TestSearchFilesMaxResults(t *testing.T) {
	fsys, root := newTestFS(t)
	for _, name := range []string{"log1", "log2", "log3"} {
		writeTestFile(t, filepath.Join(root, name), "x")
	}
	matches, err := fsys.SearchFiles(context.Background(), root, "log", SearchOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestGetFileInfo(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "info.txt")
	writeTestFile(t, path, "hello world")

	info, err := fsys.GetFileInfo(context.Background(), path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.Type != TypeFile || info.Size != 11 || info.Name != "info.txt" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !strings.HasPrefix(info.MIMEType, "text/plain") {
		t.Fatalf("unexpected mime type %q", info.MIMEType)
	}
	if info.SizeHuman != "11 B" {
		t.Fatalf("unexpected human size %q", info.SizeHuman)
	}

	dirInfo, err := fsys.GetFileInfo(context.Background(), root)
	if err != nil || dirInfo.Type != TypeDirectory || dirInfo.MIMEType != "" {
		t.Fatalf("unexpected directory info: %+v, %v", dirInfo, err)
	}
}

func TestEditFile(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "main.go")
	original := "func main() {\n    x := 1\n    y := 2\n}\n"
	writeTestFile(t, path, original)
	ctx := context.Background()

	res, err := fsys.EditFile(ctx, path, []Edit{{OldText: "x := 1\n  y := 2", NewText: "x := 10\ny := 20"}}, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	wantContent := "func main() {\n    x := 10\n    y := 20\n}\n"
	if !res.Changed || res.Content != wantContent || res.Modes[0] != "whitespace" {
		t.Fatalf("unexpected dry run result: %+v", res)
	}
	if data, _ := os.ReadFile(path); string(data) != original {
		t.Fatal("dry run must not modify the file")
	}

	res, err = fsys.EditFile(ctx, path, []Edit{{OldText: "x := 1", NewText: "x := 3"}}, false)
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}
	if res.Modes[0] != "exact" {
		t.Fatalf("expected exact match, got %v", res.Modes)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "x := 3") {
		t.Fatalf("edit not applied: %q", data)
	}
}

func TestEditFileRejectsUnreadableResult(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "notes.txt")
	writeTestFile(t, path, "keep me\n")
	_, err := fsys.EditFile(context.Background(), path, []Edit{{OldText: "keep", NewText: "ke\x00ep"}}, false)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "keep me\n" {
		t.Fatalf("file must be untouched, got %q", data)
	}
}

func TestEditFileFailureLeavesFileUntouched(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "a.txt")
	writeTestFile(t, path, "one\ntwo\n")

	edits := []Edit{
		{OldText: "one", NewText: "uno"},
		{OldText: "three", NewText: "tres"},
	}
	if _, err := fsys.EditFile(context.Background(), path, edits, false); err == nil {
		t.Fatal("expected failure for unmatched edit")
	}
	if data, _ := os.ReadFile(path); string(data) != "one\ntwo\n" {
		t.Fatalf("file modified after failed edit: %q", data)
	}
}

func TestEditFileAmbiguous(t *testing.T) {
	fsys, root := newTestFS(t)
	path := filepath.Join(root, "a.txt")
	writeTestFile(t, path, "dup\ndup\n")
	if _, err := fsys.EditFile(context.Background(), path, []Edit{{OldText: "dup", NewText: "x"}}, false); err == nil {
		t.Fatal("expected ambiguity error")
	}
}

func TestCanceledContext(t *testing.T) {
	fsys, root := newTestFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fsys.WriteFile(ctx, filepath.Join(root, "x"), "x"); err == nil {
		t.Fatal("expected canceled context to abort")
	}
}
