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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/tools"
)

const maxBatchLineBytes = 16 << 20

// runBatch reads one JSON command per line from in and writes one JSON
// envelope per line to out. A malformed line yields an error envelope and
// processing continues.
func runBatch(ctx context.Context, d *tools.Dispatcher, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	logger.Debug().Msg("Running in batch mode")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxBatchLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var cmd tools.Command
		var env tools.Envelope
		if err := json.Unmarshal(line, &cmd); err != nil {
			logger.Warn().Int("line", lineNo).Err(err).Msg("invalid batch line")
			env = tools.ErrorResult("", apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("line %d is not a command object", lineNo), err))
		} else {
			env = d.Dispatch(ctx, cmd)
		}
		if err := writeEnvelope(out, env); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

func writeEnvelope(w io.Writer, env tools.Envelope) error {
	return json.NewEncoder(w).Encode(env)
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
