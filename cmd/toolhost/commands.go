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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolhost/internal/mcpserver"
	"toolhost/internal/server"
	"toolhost/internal/tools"
)

var errToolFailed = errors.New("tool reported an error")

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHost(opts)
			if err != nil {
				return err
			}
			defer h.Close()

			cfg := server.Config{Addr: h.cfg.HTTP.Addr, Token: h.cfg.HTTP.Token}
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.Token == "" {
				h.logger.Warn().Msg("http token not set; endpoints are open")
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return server.New(cfg, h.dispatcher, h.logger.With().Str("component", "http").Logger()).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func newStdioCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHost(opts)
			if err != nil {
				return err
			}
			defer h.Close()

			srv, err := mcpserver.New("toolhost", version, h.dispatcher, h.logger.With().Str("component", "mcp").Logger())
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newCallCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call NAME [JSON]",
		Short: "Dispatch one command and print its envelope",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(opts)
			if err != nil {
				return err
			}
			defer h.Close()

			command := tools.Command{Name: args[0]}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &command.Arguments); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}
			env := h.dispatcher.Dispatch(cmd.Context(), command)
			if err := writeEnvelope(cmd.OutOrStdout(), env); err != nil {
				return err
			}
			if env.IsError {
				return errToolFailed
			}
			return nil
		},
	}
}

func newToolsCommand(opts *rootOptions) *cobra.Command {
	var asJSON, asOpenAI bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHost(opts)
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			switch {
			case asOpenAI:
				return writeIndentedJSON(out, h.dispatcher.OpenAITools())
			case asJSON:
				return writeIndentedJSON(out, h.dispatcher.ListCommands())
			}
			w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tCONVENTION\tOPERATIONS")
			for _, info := range h.dispatcher.ListCommands() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Convention, strings.Join(info.Operations, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full descriptions with input schemas")
	cmd.Flags().BoolVar(&asOpenAI, "openai", false, "print OpenAI function-calling tool definitions")
	return cmd
}
