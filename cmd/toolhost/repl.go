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
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"toolhost/internal/tools"
)

type replCommand struct {
	Name        string
	Description string
}

var replCommands = []replCommand{
	{Name: "help", Description: "Show available commands"},
	{Name: "tools", Description: "List registered tools"},
	{Name: "schema", Description: "Show the input schema of a tool"},
	{Name: "quit", Description: "Exit the shell"},
	{Name: "exit", Description: "Exit the shell"},
}

func newREPLCommand(opts *rootOptions) *cobra.Command {
	var historyFile string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive tool shell; reads JSON lines when stdin is not a terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHost(opts)
			if err != nil {
				return err
			}
			defer h.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
				return runBatch(ctx, h.dispatcher, in, cmd.OutOrStdout(), h.logger)
			}
			return runREPL(ctx, h.dispatcher, historyFile, cmd.OutOrStdout(), h.logger)
		},
	}
	cmd.Flags().StringVar(&historyFile, "history-file", ".toolhost_history", "readline history file")
	return cmd
}

func runREPL(ctx context.Context, d *tools.Dispatcher, historyFile string, out io.Writer, logger zerolog.Logger) error {
	logger.Debug().Msg("Running in interactive mode")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "toolhost> ",
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(d.Registry().Names()),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "toolhost %s, %d tools. Type /help for commands.\n\n", version, d.Registry().Count())

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineExit:
			return nil
		case readlineContinue:
			continue
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if handleREPLCommand(line, d, out) {
				return nil
			}
			continue
		}

		cmd, err := parseCallLine(line)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			continue
		}
		logger.Debug().Str("tool", cmd.Name).Msg("shell call")
		printEnvelope(out, d.Dispatch(ctx, cmd))
	}
}

// handleREPLCommand runs a slash command and reports whether the shell
// should exit.
func handleREPLCommand(input string, d *tools.Dispatcher, out io.Writer) bool {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "help":
		fmt.Fprintln(out, "Available commands:")
		for _, cmd := range replCommands {
			fmt.Fprintf(out, "  /%-8s - %s\n", cmd.Name, cmd.Description)
		}
		fmt.Fprintln(out, "\nCall a tool with: NAME {\"arg\": \"value\"}")
	case "tools":
		for _, info := range d.ListCommands() {
			fmt.Fprintf(out, "  %-12s %s\n", info.Name, info.Description)
		}
	case "schema":
		if len(fields) < 2 {
			fmt.Fprintln(out, "✗ usage: /schema NAME")
			return false
		}
		desc, ok := d.Registry().Get(fields[1])
		if !ok {
			fmt.Fprintf(out, "✗ unknown tool %q\n", fields[1])
			return false
		}
		_ = writeIndentedJSON(out, desc.InputSchema())
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "✗ Unknown command: /%s (type /help for available commands)\n", fields[0])
	}
	return false
}

func printEnvelope(out io.Writer, env tools.Envelope) {
	if env.IsError {
		fmt.Fprintf(out, "✗ %s\n", env.Text())
		return
	}
	fmt.Fprintln(out, env.Text())
}
