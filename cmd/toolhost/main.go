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
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type rootOptions struct {
	configPath string
	debug      bool
	logFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "toolhost",
		Short:         "Host sandboxed tools over HTTP, MCP stdio or an interactive shell",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "toolhost.json", "config file (JSON or YAML)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file (\"-\" for stderr)")

	root.AddCommand(
		newServeCommand(opts),
		newStdioCommand(opts),
		newREPLCommand(opts),
		newCallCommand(opts),
		newToolsCommand(opts),
	)
	return root
}

// initLogger returns the process logger and a function releasing its output.
func initLogger(debug bool, logFilePath string, level string) (zerolog.Logger, func() error, error) {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}
	if debug {
		lvl = zerolog.DebugLevel
	}

	// No logging to the console by default; stdout may carry a protocol.
	var output io.Writer = io.Discard
	closeLog := func() error { return nil }
	switch logFilePath {
	case "":
	case "-":
		output = os.Stderr
	default:
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closeLog = file.Close
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger(), closeLog, nil
}
