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

package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"toolhost/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := tools.NewRegistry()
	reg.RegisterModules(&tools.StructuredTool{
		NameValue:        "echo",
		DescriptionValue: "Echo text back",
		OperationsValue: []tools.Operation{{
			Name: "echo",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
				"required":   []any{"text"},
			},
		}},
		ExecuteFunc: func(_ context.Context, _ string, input map[string]any) (tools.Envelope, error) {
			return tools.TextResult(input["text"].(string)), nil
		},
	})
	s, err := New("toolhost-test", "0.0.0", tools.NewDispatcher(reg), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestHandlerSuccess(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handler("echo")(context.Background(), callRequest("echo", map[string]any{"text": "hi"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError || len(res.Content) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok || text.Text != "hi" {
		t.Fatalf("unexpected content %#v", res.Content[0])
	}
}

func TestHandlerValidationFailure(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handler("echo")(context.Background(), callRequest("echo", map[string]any{}))
	if err != nil {
		t.Fatalf("handler must not return protocol errors: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected isError")
	}
	detail, ok := res.StructuredContent.(tools.ErrorDetail)
	if !ok || detail.Code != "validation" {
		t.Fatalf("unexpected structured content %#v", res.StructuredContent)
	}
}

func TestToCallToolResultKeepsEmptyContent(t *testing.T) {
	res := toCallToolResult(tools.Envelope{})
	if res.Content == nil || len(res.Content) != 0 {
		t.Fatalf("expected empty non-nil content, got %#v", res.Content)
	}
}

func TestToolsListed(t *testing.T) {
	s := newTestServer(t)
	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"name":"echo"`) || !strings.Contains(string(raw), `"required":["text"]`) {
		t.Fatalf("tools/list missing echo schema: %s", raw)
	}
}
