/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements Logger on top of a zerolog.Logger without global state.
type ZeroLogger struct {
	logger zerolog.Logger
}

// New builds a Logger from config. A nil config uses DefaultConfig.
func New(config *Config) (*ZeroLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	return NewWithWriter(config, output)
}

// NewWithWriter builds a Logger that writes JSON lines to w, and to the OTLP
// collector when config.OTel is enabled. An enabled config without an
// endpoint logs locally only.
func NewWithWriter(config *Config, w io.Writer) (*ZeroLogger, error) {
	level, err := parseLevel(config)
	if err != nil {
		return nil, err
	}

	if config.OTel != nil && config.OTel.Enabled {
		otelWriter, err := sharedOTELWriter(*config.OTel)

		switch {
		case errors.Is(err, ErrOTelEndpointRequired):
		case err != nil:
			return nil, err
		default:
			w = NewMultiWriter(w, otelWriter)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	zlog := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZeroLogger{logger: zlog}, nil
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zlog zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{logger: zlog}
}

func parseLevel(config *Config) (zerolog.Level, error) {
	if config.Debug {
		return zerolog.DebugLevel, nil
	}

	if config.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(config.Level)
}

func (l *ZeroLogger) Trace() *zerolog.Event {
	return l.logger.Trace()
}

func (l *ZeroLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *ZeroLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ZeroLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *ZeroLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ZeroLogger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

func (l *ZeroLogger) Panic() *zerolog.Event {
	return l.logger.Panic()
}

func (l *ZeroLogger) With() zerolog.Context {
	return l.logger.With()
}

func (l *ZeroLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *ZeroLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (l *ZeroLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *ZeroLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// Component returns a copy of l tagged with component=<name>.
func (l *ZeroLogger) Component(name string) *ZeroLogger {
	return &ZeroLogger{logger: l.WithComponent(name)}
}
