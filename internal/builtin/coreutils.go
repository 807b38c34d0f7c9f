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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/u-root/u-root/pkg/core"
	corebase64 "github.com/u-root/u-root/pkg/core/base64"
	corecat "github.com/u-root/u-root/pkg/core/cat"
	corels "github.com/u-root/u-root/pkg/core/ls"
	coreshasum "github.com/u-root/u-root/pkg/core/shasum"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/fsops"
	"toolhost/internal/tools"
)

const coreutilsToolName = "coreutils"

func coreutilsOperations() []tools.Operation {
	pathsProp := map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"minItems": 1,
	}
	return []tools.Operation{
		{
			Name:        "cat",
			Description: "Concatenate files",
			Params:      []string{"paths"},
			InputSchema: objectSchema(map[string]any{"paths": pathsProp}, "paths"),
		},
		{
			Name:        "shasum",
			Description: "SHA checksums of files",
			Params:      []string{"paths", "algorithm"},
			InputSchema: objectSchema(map[string]any{
				"paths": pathsProp,
				"algorithm": map[string]any{
					"type":        "integer",
					"enum":        []any{1, 256, 512},
					"description": "SHA algorithm (default: 1)",
				},
			}, "paths"),
		},
		{
			Name:        "base64",
			Description: "Base64 encode or decode a file",
			Params:      []string{"path", "decode"},
			InputSchema: objectSchema(map[string]any{
				"path":   pathProp,
				"decode": map[string]any{"type": "boolean"},
			}, "path"),
		},
		{
			Name:        "ls",
			Description: "List a directory the way ls does",
			Params:      []string{"path", "all", "recursive"},
			InputSchema: objectSchema(map[string]any{
				"path":      pathProp,
				"all":       map[string]any{"type": "boolean", "description": "Include hidden entries"},
				"recursive": map[string]any{"type": "boolean"},
			}, "path"),
		},
	}
}

// coreutilsTool runs u-root core commands in-process on sandbox-resolved
// paths. Every run is bounded by the tool's configured timeout.
type coreutilsTool struct {
	fs       *fsops.FS
	timeouts tools.TimeoutConfig
	logger   zerolog.Logger
}

func newCoreutilsTool(fs *fsops.FS, timeouts tools.TimeoutConfig, logger zerolog.Logger) *tools.LegacyTool {
	t := &coreutilsTool{fs: fs, timeouts: timeouts, logger: logger}
	return &tools.LegacyTool{
		NameValue:        coreutilsToolName,
		DescriptionValue: "Run cat, shasum, base64 and ls on files inside the allowed directories",
		OperationsValue:  coreutilsOperations(),
		CommandFunc:      t.onCommand,
	}
}

func (t *coreutilsTool) onCommand(ctx context.Context, subcommand string, args []any) (string, error) {
	verb, err := verbOf(coreutilsToolName, subcommand)
	if err != nil {
		return "", err
	}
	ctx, cancel := t.timeouts.WithTimeout(ctx, coreutilsToolName)
	defer cancel()

	switch verb {
	case "cat":
		resolved, err := t.resolveFiles(stringsAt(args, 0))
		if err != nil {
			return "", err
		}
		return t.run(ctx, corecat.New(), resolved)
	case "shasum":
		resolved, err := t.resolveFiles(stringsAt(args, 0))
		if err != nil {
			return "", err
		}
		var cmdArgs []string
		if algorithm := intAt(args, 1); algorithm != 0 && algorithm != 1 {
			cmdArgs = append(cmdArgs, "-a", strconv.Itoa(algorithm))
		}
		out, err := t.run(ctx, coreshasum.New(), append(cmdArgs, resolved...))
		return strings.TrimRight(out, "\n"), err
	case "base64":
		path, err := requireStringAt(args, 0, "path")
		if err != nil {
			return "", err
		}
		resolved, err := t.resolveFiles([]string{path})
		if err != nil {
			return "", err
		}
		var cmdArgs []string
		if boolAt(args, 1) {
			cmdArgs = append(cmdArgs, "-d")
		}
		out, err := t.run(ctx, corebase64.New(), append(cmdArgs, resolved...))
		return strings.TrimRight(out, "\n"), err
	case "ls":
		path, err := requireStringAt(args, 0, "path")
		if err != nil {
			return "", err
		}
		resolved, err := t.fs.Resolve(path)
		if err != nil {
			return "", err
		}
		var cmdArgs []string
		if boolAt(args, 1) {
			cmdArgs = append(cmdArgs, "-a")
		}
		if boolAt(args, 2) {
			cmdArgs = append(cmdArgs, "-R")
		}
		out, err := t.run(ctx, corels.New(), append(cmdArgs, resolved))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "Directory is empty", nil
		}
		return out, nil
	}
	return "", apperrors.Newf(apperrors.CodeValidation, "unknown coreutils operation %q", verb)
}

// resolveFiles maps every path through the sandbox and rejects directories
// and files over the size limit before any command runs.
func (t *coreutilsTool) resolveFiles(raws []string) ([]string, error) {
	if len(raws) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one path is required")
	}
	resolved, err := t.fs.ResolveAll(raws...)
	if err != nil {
		return nil, err
	}
	maxSize := t.fs.Limits().MaxFileSizeBytes
	for _, path := range resolved {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, apperrors.Wrap(apperrors.CodeNotFound, "path not found: "+path, err)
			}
			return nil, apperrors.Wrap(apperrors.CodeToolExecution, "failed to stat "+path, err)
		}
		if info.IsDir() {
			return nil, apperrors.Newf(apperrors.CodeToolExecution, "path '%s' is a directory", path)
		}
		if info.Size() > maxSize {
			return nil, apperrors.Newf(apperrors.CodeToolExecution, "file exceeds maximum size of %d bytes", maxSize)
		}
	}
	return resolved, nil
}

func (t *coreutilsTool) run(ctx context.Context, cmd core.Command, args []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)
	if roots := t.fs.AllowedRoots(); len(roots) > 0 {
		cmd.SetWorkingDir(roots[0])
	}

	t.logger.Debug().Strs("args", args).Msg("running core command")
	if err := cmd.RunContext(ctx, args...); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", apperrors.Wrap(apperrors.CodeToolExecution, "command timed out", ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
