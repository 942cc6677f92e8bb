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


package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/devicewatch/pkg/version"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	defaultBatchTimeout  = 5 * time.Second
	defaultLogScope      = "devicewatch"
	maxAttributeValueLen = 4096
)

// logProvider is kept for ShutdownOTEL. logWriter is shared by every logger
// built from an OTel-enabled Config.
//
//nolint:gochecknoglobals // needed for coordinated OTel shutdown
var (
	logProvider *sdklog.LoggerProvider
	logWriter   *OTelWriter
	logMu       sync.Mutex
)

// OTelWriter re-emits zerolog JSON lines as OTel log records. Each line's
// "component" field selects the instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]otellog.Logger
}

// NewOTELWriter builds an OTLP/gRPC log exporter behind a batch processor and
// installs it as the global LoggerProvider.
func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	provider, err := newLogProvider(ctx, config)
	if err != nil {
		return nil, err
	}

	logMu.Lock()
	logProvider = provider
	logMu.Unlock()

	global.SetLoggerProvider(provider)

	return newOTelWriter(ctx, provider), nil
}

// sharedOTELWriter returns the writer installed by an earlier call, so
// component loggers built from the same Config share one exporter.
func sharedOTELWriter(config OTelConfig) (*OTelWriter, error) {
	logMu.Lock()
	defer logMu.Unlock()

	if logWriter != nil {
		return logWriter, nil
	}

	ctx := context.Background()

	provider, err := newLogProvider(ctx, config)
	if err != nil {
		return nil, err
	}

	logProvider = provider
	logWriter = newOTelWriter(ctx, provider)

	global.SetLoggerProvider(provider)

	return logWriter, nil
}

func newLogProvider(ctx context.Context, config OTelConfig) (*sdklog.LoggerProvider, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup log TLS configuration: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	batchTimeout := defaultBatchTimeout

	if config.BatchTimeout != "" {
		d, err := time.ParseDuration(config.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid log batch timeout: %w", err)
		}

		batchTimeout = d
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, version.Get().Version)
	if err != nil {
		return nil, err
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	), nil
}

func newOTelWriter(ctx context.Context, provider *sdklog.LoggerProvider) *OTelWriter {
	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		scopes:   make(map[string]otellog.Logger),
	}
}

// Write never fails. Lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}

	var record otellog.Record

	if ts, ok := fields["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(fields, "time")
		}
	}

	if level, ok := fields["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTEL(level))
		record.SetSeverityText(strings.ToUpper(level))
		delete(fields, "level")
	}

	if msg, ok := fields["message"].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(fields, "message")
	}

	scope := defaultLogScope
	if component, ok := fields["component"].(string); ok && component != "" {
		scope = component
		delete(fields, "component")
	}

	for key, value := range fields {
		record.AddAttributes(toLogAttribute(key, value))
	}

	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scope(name string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[name]
	if !ok {
		l = w.provider.Logger(name)
		w.scopes[name] = l
	}

	return l
}

func toLogAttribute(key string, value any) otellog.KeyValue {
	switch v := value.(type) {
	case string:
		return otellog.String(key, truncateString(v, maxAttributeValueLen))
	case bool:
		return otellog.Bool(key, v)
	case float64:
		if v == float64(int64(v)) {
			return otellog.Int64(key, int64(v))
		}

		return otellog.Float64(key, v)
	case nil:
		return otellog.String(key, "null")
	default:
		// nested objects and arrays are flattened to their JSON text
		encoded, err := json.Marshal(v)
		if err != nil {
			return otellog.String(key, truncateString(fmt.Sprint(v), maxAttributeValueLen))
		}

		return otellog.String(key, truncateString(string(encoded), maxAttributeValueLen))
	}
}

// truncateString cuts value to at most limit bytes on a rune boundary,
// marking the cut with "...".
func truncateString(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	const ellipsis = "..."

	cut := limit - len(ellipsis)
	if cut < 0 {
		cut = 0
	}

	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}

	return value[:cut] + ellipsis
}

func mapZerologLevelToOTEL(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "info":
		return otellog.SeverityInfo
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

// ShutdownOTEL flushes and stops every OTel pipeline this package started:
// logs, traces and metrics.
func ShutdownOTEL(ctx context.Context) error {
	logMu.Lock()
	provider := logProvider
	logProvider = nil
	logWriter = nil
	logMu.Unlock()

	var errs []error

	if provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider: %w", err))
		}
	}

	if err := shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}

	if err := ShutdownMetrics(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}

	return errors.Join(errs...)
}

// MultiWriter copies each write to every writer. A failing writer does not
// stop the others; the first error is returned.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(p []byte) (int, error) {
	var first error

	for _, w := range mw.writers {
		n, err := w.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}

		if err != nil && first == nil {
			first = err
		}
	}

	if first != nil {
		return 0, first
	}

	return len(p), nil
}
