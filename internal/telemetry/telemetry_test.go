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

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestInitExportsSpansToWriter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var out bytes.Buffer
	tp, err := Init(Config{ServiceVersion: "test", Writer: &out})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, span := tp.Tracer("telemetry-test").Start(context.Background(), "unit.span")
	span.End()
	if err := Shutdown(tp, 5*time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, want := range []string{`"Name":"unit.span"`, "toolhost"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected exported spans to contain %q, got %q", want, out.String())
		}
	}
	if otel.GetTracerProvider() != tp {
		t.Fatal("expected the provider to be installed globally")
	}
}
