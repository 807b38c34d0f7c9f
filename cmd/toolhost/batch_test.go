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
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	apperrors "toolhost/internal/errors"
	"toolhost/internal/tools"
)

func decodeEnvelopes(t *testing.T, data string) []tools.Envelope {
	t.Helper()
	var envs []tools.Envelope
	dec := json.NewDecoder(strings.NewReader(data))
	for dec.More() {
		var env struct {
			tools.Envelope
			StructuredContent tools.ErrorDetail `json:"structuredContent"`
		}
		if err := dec.Decode(&env); err != nil {
			t.Fatalf("failed to decode output: %v", err)
		}
		env.Envelope.StructuredContent = env.StructuredContent
		envs = append(envs, env.Envelope)
	}
	return envs
}

func TestRunBatch(t *testing.T) {
	d := newTestHost(t).dispatcher
	input := strings.Join([]string{
		`{"name":"echo","arguments":{"text":"one"}}`,
		``,
		`not json`,
		`{"name":"ghost"}`,
		`{"name":"echo","arguments":{}}`,
	}, "\n")

	var out bytes.Buffer
	if err := runBatch(context.Background(), d, strings.NewReader(input), &out, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envs := decodeEnvelopes(t, out.String())
	if len(envs) != 4 {
		t.Fatalf("expected 4 envelopes, got %d: %s", len(envs), out.String())
	}
	if envs[0].IsError || envs[0].Text() != "one" {
		t.Fatalf("unexpected first envelope %+v", envs[0])
	}
	wantCodes := []apperrors.Code{apperrors.CodeValidation, apperrors.CodeNotFound, apperrors.CodeValidation}
	for i, code := range wantCodes {
		env := envs[i+1]
		detail, _ := env.StructuredContent.(tools.ErrorDetail)
		if !env.IsError || detail.Code != code {
			t.Fatalf("envelope %d: expected %s error, got %+v", i+1, code, env)
		}
	}
	if !strings.Contains(envs[1].Text(), "line 3") {
		t.Fatalf("expected bad line to be numbered, got %q", envs[1].Text())
	}
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	d := newTestHost(t).dispatcher
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runBatch(ctx, d, strings.NewReader(`{"name":"echo","arguments":{"text":"x"}}`+"\n"), &out, zerolog.Nop())
	if err == nil {
		t.Fatal("expected context error")
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output after cancel, got %q", out.String())
	}
}
