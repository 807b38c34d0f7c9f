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
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"toolhost/internal/builtin"
	"toolhost/internal/config"
	"toolhost/internal/fsops"
	"toolhost/internal/sandbox"
	"toolhost/internal/telemetry"
	"toolhost/internal/tools"
)

// host is the wired tool stack shared by every channel.
type host struct {
	cfg        *config.Config
	logger     zerolog.Logger
	dispatcher *tools.Dispatcher
	closeLog   func() error
	closers    []func() error
}

func openHost(opts *rootOptions) (*host, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := initLogger(opts.debug, opts.logFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	h, err := newHost(cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	h.closeLog = closeLog
	return h, nil
}

func newHost(cfg *config.Config, logger zerolog.Logger) (*host, error) {
	component := func(name string) zerolog.Logger {
		return logger.With().Str("component", name).Logger()
	}

	sb, err := sandbox.New(cfg.AllowedRoots, sandbox.WithLogger(component("sandbox")))
	if err != nil {
		return nil, err
	}
	fs := fsops.New(sb, fsops.WithLimits(cfg.FSLimits()), fsops.WithLogger(component("fsops")))

	reg := tools.NewRegistry(tools.WithRegistryLogger(component("registry")))
	reg.RegisterModules(builtin.Modules(fs, builtin.Options{
		Timeouts: cfg.ToolTimeoutsConfig(),
		Logger:   component("builtin"),
	})...)

	h := &host{cfg: cfg, logger: logger, closeLog: func() error { return nil }}
	opts := []tools.DispatcherOption{
		tools.WithAdapters(builtin.Adapters()),
		tools.WithLogger(component("dispatcher")),
		tools.WithOutputFilters(cfg.ToolOutputFiltersConfig()),
		tools.WithRateLimits(cfg.ToolRateLimitsConfig()),
		tools.WithPolicy(cfg.ToolPolicy()),
	}
	if cfg.Tracing.Enabled {
		tp, err := h.initTracing(cfg.Tracing)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		opts = append(opts, tools.WithTracerProvider(tp))
	}
	h.dispatcher = tools.NewDispatcher(reg, opts...)

	for _, w := range cfg.Validate(reg) {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}
	logger.Info().
		Strs("allowed_roots", sb.Roots()).
		Int("tools", reg.Count()).
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("tool host ready")

	return h, nil
}

// initTracing opens the span output and builds the tracer provider. Spans
// never go to stdout, which carries protocol output in stdio and batch modes.
func (h *host) initTracing(cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	var out io.Writer = os.Stderr
	if cfg.Output != "" && cfg.Output != "-" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		h.closers = append(h.closers, file.Close)
		out = file
	}
	tp, err := telemetry.Init(telemetry.Config{ServiceName: "toolhost", ServiceVersion: version, Writer: out})
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, func() error { return telemetry.Shutdown(tp, 5*time.Second) })
	return tp, nil
}

// Close flushes tracing, closes trace output and then the log file.
func (h *host) Close() error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.closers = nil
	if err := h.closeLog(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
