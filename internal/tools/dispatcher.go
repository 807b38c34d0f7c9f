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
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "toolhost/internal/errors"
)

const tracerName = "toolhost/internal/tools"

// Command is one request to run a tool.
type Command struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CommandInfo describes a tool to callers that enumerate commands.
type CommandInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Operations  []string       `json:"operations"`
	Convention  Convention     `json:"convention"`
}

// Dispatcher routes commands to registered tools. Dispatch never panics and
// never returns an error; every failure becomes an error envelope. Calls are
// not serialized, even for the same tool.
type Dispatcher struct {
	registry *Registry
	adapters AdapterTable
	filters  OutputFilterConfig
	limiters *rateLimiters
	policy   Policy
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAdapters installs the tool-keyed adapter table.
func WithAdapters(table AdapterTable) DispatcherOption {
	return func(d *Dispatcher) {
		d.adapters = table
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithOutputFilters sets sanitization applied to legacy tool output.
func WithOutputFilters(config OutputFilterConfig) DispatcherOption {
	return func(d *Dispatcher) {
		d.filters = config.Normalize()
	}
}

// WithRateLimits enables per-tool rate limiting.
func WithRateLimits(config RateLimitConfig) DispatcherOption {
	return func(d *Dispatcher) {
		d.limiters = newRateLimiters(config)
	}
}

// WithPolicy restricts which tools may run.
func WithPolicy(policy Policy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = policy
	}
}

// WithTracerProvider sets the provider used for dispatch spans.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tp.Tracer(tracerName)
	}
}

// NewDispatcher creates a dispatcher reading from reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		adapters: AdapterTable{},
		filters:  DefaultOutputFilterConfig(),
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher reads from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ListCommands describes every registered tool, sorted by name.
func (d *Dispatcher) ListCommands() []CommandInfo {
	descs := d.registry.List()
	out := make([]CommandInfo, 0, len(descs))
	for _, desc := range descs {
		out = append(out, CommandInfo{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema(),
			Operations:  desc.OperationNames(),
			Convention:  desc.Convention(),
		})
	}
	return out
}

// Dispatch runs cmd and returns its envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (env Envelope) {
	if ctx == nil {
		ctx = context.Background()
	}
	callID := uuid.NewString()
	ctx, span := d.tracer.Start(ctx, "tools.dispatch", trace.WithAttributes(
		attribute.String("tool.name", cmd.Name),
		attribute.String("tool.call_id", callID),
	))
	logger := d.logger.With().Str("tool", cmd.Name).Str("call_id", callID).Logger()
	start := time.Now()
	logger.Debug().Msg("dispatch started")

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("tool panicked")
			env = ErrorResult(cmd.Name, apperrors.Newf(apperrors.CodeToolExecution, "tool %s panicked: %v", cmd.Name, r))
		}
		env = env.normalized()
		elapsed := time.Since(start)
		if env.IsError {
			span.SetStatus(codes.Error, env.Text())
			logger.Warn().Dur("elapsed", elapsed).Str("result", env.Text()).Msg("dispatch failed")
		} else {
			logger.Debug().Dur("elapsed", elapsed).Msg("dispatch finished")
		}
		span.SetAttributes(attribute.Bool("tool.is_error", env.IsError))
		span.End()
	}()

	desc, ok := d.registry.Get(cmd.Name)
	if !ok {
		return ErrorResult(cmd.Name, newNotFoundError(cmd.Name))
	}
	result, err := d.invoke(ctx, desc, cmd.Arguments, span)
	if err != nil {
		return ErrorResult(desc.Name, err)
	}
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, desc *Descriptor, arguments map[string]any, span trace.Span) (Envelope, error) {
	if err := d.policy.Check(desc.Name); err != nil {
		return Envelope{}, err
	}

	args := make(map[string]any, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}
	args = d.adapters.Apply(desc.Name, args)

	compiled, input, err := desc.selectOperation(args)
	if err != nil {
		return Envelope{}, err
	}
	span.SetAttributes(attribute.String("tool.operation", compiled.op.Name))
	if fields := compiled.input.Validate(input); len(fields) > 0 {
		return Envelope{}, &ValidationError{Tool: desc.Name, Operation: compiled.op.Name, Fields: fields}
	}
	if err := d.limiters.Allow(desc.Name); err != nil {
		return Envelope{}, NewToolExecutionError(desc.Name, compiled.op.Name, err)
	}

	switch entry := desc.Entry.(type) {
	case StructuredEntry:
		env, err := entry.Execute(ctx, compiled.op.Name, input)
		if err != nil {
			return Envelope{}, toolError(desc.Name, compiled.op.Name, err)
		}
		if compiled.output != nil && !env.IsError && env.StructuredContent != nil {
			out, convErr := toJSONValue(env.StructuredContent)
			obj, isObject := out.(map[string]any)
			if convErr != nil || !isObject {
				return Envelope{}, NewToolExecutionError(desc.Name, compiled.op.Name, fmt.Errorf("structured output is not a JSON object"))
			}
			if fields := compiled.output.Validate(obj); len(fields) > 0 {
				verr := &ValidationError{Tool: desc.Name, Operation: compiled.op.Name, Fields: fields}
				return Envelope{}, NewToolExecutionError(desc.Name, compiled.op.Name, fmt.Errorf("output failed schema validation: %w", verr))
			}
		}
		return env, nil
	case LegacyEntry:
		subcommand := desc.Name + ":" + compiled.op.Name
		text, err := entry.OnCommand(ctx, subcommand, positional(compiled.op, input))
		if err != nil {
			return Envelope{}, toolError(desc.Name, compiled.op.Name, err)
		}
		return TextResult(d.filters.Apply(text)), nil
	default:
		return Envelope{}, apperrors.Newf(apperrors.CodeToolExecution, "tool %s has no entry point", desc.Name)
	}
}

// toolError keeps an error's own code, such as access_denied from the
// sandbox, and classifies everything else as a tool execution failure.
func toolError(tool, operation string, err error) error {
	if _, ok := apperrors.CodeOf(err); ok {
		return fmt.Errorf("tool %s failed during %s: %w", tool, operation, err)
	}
	return NewToolExecutionError(tool, operation, err)
}
