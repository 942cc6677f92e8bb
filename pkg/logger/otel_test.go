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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (m *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range records {
		m.records = append(m.records, records[i].Clone())
	}

	return nil
}

func (*memoryExporter) Shutdown(context.Context) error   { return nil }
func (*memoryExporter) ForceFlush(context.Context) error { return nil }

func newMemoryWriter(t *testing.T) (*OTelWriter, *memoryExporter) {
	t.Helper()

	exp := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return newOTelWriter(context.Background(), provider), exp
}

func attributesOf(r *sdklog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)

	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value

		return true
	})

	return out
}

func TestOTelWriter_Disabled(t *testing.T) {
	writer, err := NewOTELWriter(context.Background(), OTelConfig{Enabled: false})
	if !errors.Is(err, ErrOTelLoggingDisabled) {
		t.Errorf("Expected ErrOTelLoggingDisabled, got %v", err)
	}

	if writer != nil {
		t.Error("Writer should be nil when OTel is disabled")
	}
}

func TestOTelWriter_NoEndpoint(t *testing.T) {
	writer, err := NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	if !errors.Is(err, ErrOTelEndpointRequired) {
		t.Errorf("Expected ErrOTelEndpointRequired, got %v", err)
	}

	if writer != nil {
		t.Error("Writer should be nil when endpoint is empty")
	}
}

func TestOTelWriter_InvalidBatchTimeout(t *testing.T) {
	_, err := NewOTELWriter(context.Background(), OTelConfig{
		Enabled:      true,
		Endpoint:     "127.0.0.1:4317",
		Insecure:     true,
		BatchTimeout: "soon",
	})
	if err == nil {
		t.Error("Expected error for unparseable batch timeout")
	}
}

func TestOTelWriter_Write(t *testing.T) {
	writer, exp := newMemoryWriter(t)

	line := `{"level":"warn","component":"poller","device_id":"p001","attempt":3,` +
		`"ratio":0.5,"dry_run":true,"tags":["a","b"],"time":"2025-01-02T03:04:05Z","message":"Probe slow"}`

	n, err := writer.Write([]byte(line))
	if err != nil || n != len(line) {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	if len(exp.records) != 1 {
		t.Fatalf("Expected 1 exported record, got %d", len(exp.records))
	}

	r := exp.records[0]

	if r.Body().AsString() != "Probe slow" {
		t.Errorf("Expected body %q, got %q", "Probe slow", r.Body().AsString())
	}

	if r.Severity() != otellog.SeverityWarn {
		t.Errorf("Expected WARN severity, got %v", r.Severity())
	}

	if r.InstrumentationScope().Name != "poller" {
		t.Errorf("Expected scope poller, got %q", r.InstrumentationScope().Name)
	}

	if want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC); !r.Timestamp().Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, r.Timestamp())
	}

	attrs := attributesOf(&r)

	for _, consumed := range []string{"level", "message", "component", "time"} {
		if _, ok := attrs[consumed]; ok {
			t.Errorf("%q should not be repeated as an attribute", consumed)
		}
	}

	if attrs["device_id"].AsString() != "p001" {
		t.Errorf("Expected device_id=p001, got %v", attrs["device_id"])
	}

	if attrs["attempt"].AsInt64() != 3 {
		t.Errorf("Expected attempt=3, got %v", attrs["attempt"])
	}

	if attrs["ratio"].AsFloat64() != 0.5 {
		t.Errorf("Expected ratio=0.5, got %v", attrs["ratio"])
	}

	if !attrs["dry_run"].AsBool() {
		t.Errorf("Expected dry_run=true, got %v", attrs["dry_run"])
	}

	if attrs["tags"].AsString() != `["a","b"]` {
		t.Errorf("Expected tags as JSON text, got %v", attrs["tags"])
	}
}

func TestOTelWriter_DefaultScopeAndGarbage(t *testing.T) {
	writer, exp := newMemoryWriter(t)

	if _, err := writer.Write([]byte("not json")); err != nil {
		t.Errorf("Write must not fail on non-JSON input: %v", err)
	}

	if _, err := writer.Write([]byte(`{"level":"info","message":"hello"}`)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if len(exp.records) != 1 {
		t.Fatalf("Expected only the JSON line to be exported, got %d", len(exp.records))
	}

	if got := exp.records[0].InstrumentationScope().Name; got != defaultLogScope {
		t.Errorf("Expected default scope %q, got %q", defaultLogScope, got)
	}
}

func TestMapZerologLevelToOTEL(t *testing.T) {
	tests := []struct {
		zerologLevel string
		expected     string
	}{
		{"trace", "TRACE"},
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"fatal", "FATAL"},
		{"panic", "FATAL"},
		{"unknown", "INFO"},
	}

	for _, test := range tests {
		result := mapZerologLevelToOTEL(test.zerologLevel)
		if result.String() != test.expected {
			t.Errorf("mapZerologLevelToOTEL(%s) = %s, expected %s",
				test.zerologLevel, result.String(), test.expected)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("Expected untouched value, got %q", got)
	}

	if got := truncateString("abcdefghij", 8); got != "abcde..." {
		t.Errorf("Expected %q, got %q", "abcde...", got)
	}

	// "é" is two bytes; the cut must not split it
	got := truncateString(strings.Repeat("é", 10), 8)
	if !strings.HasSuffix(got, "...") || len(got) > 8 || strings.ContainsRune(got, '�') {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("sink down") }

func TestMultiWriter(t *testing.T) {
	var first, second bytes.Buffer

	mw := NewMultiWriter(&first, failingWriter{}, &second)

	_, err := mw.Write([]byte("line\n"))
	if err == nil {
		t.Error("Expected the failing sink's error")
	}

	if first.String() != "line\n" || second.String() != "line\n" {
		t.Errorf("Every healthy sink must receive the line, got %q and %q", first.String(), second.String())
	}
}

func TestLoggerWithOTelEnabledButNoEndpoint(t *testing.T) {
	var buf bytes.Buffer

	l, err := NewWithWriter(&Config{Level: "info", OTel: &OTelConfig{Enabled: true}}, &buf)
	if err != nil {
		t.Fatalf("Failed to initialize logger with OTel enabled but no endpoint: %v", err)
	}

	l.Info().Str("test", "value").Msg("local only")

	if !strings.Contains(buf.String(), "local only") {
		t.Errorf("Expected the line on the local writer, got %q", buf.String())
	}
}

func TestLoggerWithOTelEnabled(t *testing.T) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = ShutdownOTEL(ctx)
	})

	config := &Config{
		Level: "info",
		OTel: &OTelConfig{
			Enabled:      true,
			Endpoint:     "127.0.0.1:4317",
			Insecure:     true,
			BatchTimeout: "50ms",
		},
	}

	var first, second bytes.Buffer

	a, err := NewWithWriter(config, &first)
	if err != nil {
		t.Fatalf("Failed to initialize logger with OTel enabled: %v", err)
	}

	logMu.Lock()
	shared := logWriter
	logMu.Unlock()

	if shared == nil {
		t.Fatal("Expected an OTel writer to be installed")
	}

	if _, err := NewWithWriter(config, &second); err != nil {
		t.Fatalf("Failed to initialize second logger: %v", err)
	}

	logMu.Lock()
	again := logWriter
	logMu.Unlock()

	if again != shared {
		t.Error("Loggers built from one config must share the OTel writer")
	}

	a.Info().Msg("exported and local")

	if !strings.Contains(first.String(), "exported and local") {
		t.Errorf("Expected the line on the local writer, got %q", first.String())
	}
}

func TestShutdownOTELWithoutProviders(t *testing.T) {
	if err := ShutdownOTEL(context.Background()); err != nil {
		t.Errorf("ShutdownOTEL without providers should be a no-op, got %v", err)
	}
}
