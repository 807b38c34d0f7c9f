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

// Package mcpserver exports registered tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"toolhost/internal/tools"
)

// Server adapts a dispatcher to an MCP server. Every registered tool is
// exported with its advertised input schema.
type Server struct {
	dispatcher *tools.Dispatcher
	mcp        *server.MCPServer
	logger     zerolog.Logger
}

// New builds the MCP server and registers one MCP tool per registered tool.
func New(name, version string, dispatcher *tools.Dispatcher, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		dispatcher: dispatcher,
		mcp:        server.NewMCPServer(name, version, server.WithToolCapabilities(true)),
		logger:     logger,
	}
	for _, info := range dispatcher.ListCommands() {
		raw, err := json.Marshal(info.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: encode input schema: %w", info.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(info.Name, info.Description, raw), s.handler(info.Name))
	}
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in and out until ctx is canceled or in is closed.
// Diagnostics go to the logger, never to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger, "", 0))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := s.dispatcher.Dispatch(ctx, tools.Command{Name: name, Arguments: request.GetArguments()})
		return toCallToolResult(env), nil
	}
}

func toCallToolResult(env tools.Envelope) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(env.Content))
	for _, block := range env.Content {
		content = append(content, mcp.NewTextContent(block.Text))
	}
	return &mcp.CallToolResult{
		Content:           content,
		IsError:           env.IsError,
		StructuredContent: env.StructuredContent,
	}
}
