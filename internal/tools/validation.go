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

package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "toolhost/internal/errors"
)

var messagePrinter = message.NewPrinter(language.English)

// FieldError describes one failed constraint. Field is a dotted path into the
// argument object; empty means the object itself.
type FieldError struct {
	Field   string `json:"field"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

// ValidationError reports every field that failed validation.
type ValidationError struct {
	Tool      string
	Operation string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// Unwrap lets apperrors.CodeOf classify the error as validation.
func (e *ValidationError) Unwrap() error {
	return &apperrors.Error{Code: apperrors.CodeValidation}
}

// Validator checks argument objects against one compiled schema. A nil
// schema accepts every object.
type Validator struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON schema held as a generic map.
func CompileSchema(name string, schema map[string]any) (*Validator, error) {
	if len(schema) == 0 {
		return &Validator{}, nil
	}
	doc, err := toJSONValue(schema)
	if err != nil {
		return nil, err
	}
	loc := "mem://tools/" + url.PathEscape(name) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, err
	}
	compiled, err := c.Compile(loc)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: compiled}, nil
}

// Validate returns the failed fields for args, or nil. Args are converted to
// plain JSON values first and are never modified; no defaults are applied.
func (v *Validator) Validate(args map[string]any) []FieldError {
	if v == nil || v.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	inst, err := toJSONValue(args)
	if err != nil {
		return []FieldError{{Keyword: "type", Message: fmt.Sprintf("arguments are not valid JSON: %v", err)}}
	}
	err = v.schema.Validate(inst)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []FieldError{{Message: err.Error()}}
	}
	var fields []FieldError
	collectFieldErrors(verr, &fields)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Field != fields[j].Field {
			return fields[i].Field < fields[j].Field
		}
		return fields[i].Keyword < fields[j].Keyword
	})
	return fields
}

func collectFieldErrors(verr *jsonschema.ValidationError, out *[]FieldError) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectFieldErrors(cause, out)
		}
		return
	}
	base := strings.Join(verr.InstanceLocation, ".")
	switch k := verr.ErrorKind.(type) {
	case *kind.Required:
		for _, missing := range k.Missing {
			*out = append(*out, FieldError{Field: joinField(base, missing), Keyword: "required", Message: "missing required property"})
		}
	case *kind.AdditionalProperties:
		for _, prop := range k.Properties {
			*out = append(*out, FieldError{Field: joinField(base, prop), Keyword: "additionalProperties", Message: "property is not allowed"})
		}
	default:
		keyword := ""
		if path := verr.ErrorKind.KeywordPath(); len(path) > 0 {
			keyword = path[len(path)-1]
		}
		*out = append(*out, FieldError{Field: base, Keyword: keyword, Message: verr.ErrorKind.LocalizedString(messagePrinter)})
	}
}

func joinField(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// toJSONValue round-trips v through encoding/json so the validator sees the
// same shapes a wire caller would send.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
