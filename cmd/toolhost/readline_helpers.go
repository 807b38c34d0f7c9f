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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"toolhost/internal/tools"
)

type readlineAction int

const (
	readlineContinue readlineAction = iota
	readlineExit
	readlineUnhandled
)

func classifyReadlineError(line string, err error) readlineAction {
	switch {
	case err == nil:
		return readlineUnhandled
	case errors.Is(err, readline.ErrInterrupt):
		return readlineContinue
	case errors.Is(err, io.EOF):
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineContinue
	default:
		return readlineUnhandled
	}
}

// parseCallLine turns "name {json}" into a command. The JSON object is
// optional.
func parseCallLine(line string) (tools.Command, error) {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	if name == "" {
		return tools.Command{}, fmt.Errorf("empty command")
	}
	cmd := tools.Command{Name: name}
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &cmd.Arguments); err != nil {
			return tools.Command{}, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}
	return cmd, nil
}

// replCompleter completes slash commands and tool names.
func replCompleter(toolNames []string) *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(toolNames)+len(replCommands))
	for _, cmd := range replCommands {
		items = append(items, readline.PcItem("/"+cmd.Name))
	}
	for _, name := range toolNames {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
