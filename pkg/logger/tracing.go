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
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

//nolint:gochecknoglobals // needed for coordinated OTel shutdown
var (
	tracerProvider *sdktrace.TracerProvider
	tracerMu       sync.Mutex
)

// TracingConfig holds the configuration for OpenTelemetry tracing setup.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Logger         Logger      // optional
	OTel           *OTelConfig // spans are exported only when enabled
}

// InitializeTracing installs a global TracerProvider and the W3C trace
// context propagator. Without an enabled OTel endpoint spans are still
// created, so IDs appear in logs, but nothing is exported.
func InitializeTracing(ctx context.Context, config TracingConfig) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	exporting := config.OTel != nil && config.OTel.Enabled && config.OTel.Endpoint != ""
	if exporting {
		exporter, err := createTraceExporter(ctx, config.OTel)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	tracerMu.Lock()
	tracerProvider = tp
	tracerMu.Unlock()

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Logger != nil {
		config.Logger.Debug().
			Str("service", config.ServiceName).
			Bool("exporting", exporting).
			Msg("Initialized OpenTelemetry tracing")
	}

	return tp, nil
}

// GetTracer returns a tracer from the global TracerProvider. Before
// InitializeTracing it yields no-op spans.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func shutdownTracing(ctx context.Context) error {
	tracerMu.Lock()
	tp := tracerProvider
	tracerProvider = nil
	tracerMu.Unlock()

	if tp == nil {
		return nil
	}

	return tp.Shutdown(ctx)
}

func createTraceExporter(ctx context.Context, config *OTelConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup trace TLS configuration: %w", err)
		}

		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}
