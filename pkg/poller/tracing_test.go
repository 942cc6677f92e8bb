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


package poller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/devicewatch/pkg/models"
)

// spanCheckingProber answers from results and remembers whether each call
// arrived with a recording span in its context.
type spanCheckingProber struct {
	results map[string]probeResult

	mu     sync.Mutex
	traced map[string]bool
}

func (s *spanCheckingProber) Probe(ctx context.Context, address string) (models.DeviceStatus, error) {
	s.mu.Lock()
	s.traced[address] = trace.SpanFromContext(ctx).SpanContext().IsValid()
	s.mu.Unlock()

	r := s.results[address]

	return r.status, r.err
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}

	return out
}

func TestSettleRecordsSpanPerProbe(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prober := &spanCheckingProber{
		results: map[string]probeResult{
			"10.0.0.1": {status: models.StatusUp},
			"10.0.0.2": {err: errors.New("no route to host")},
		},
		traced: make(map[string]bool),
	}

	p, _, _ := newTestPoller(t, prober, []models.Device{
		testDevice("a", "Device A", "10.0.0.1", models.StatusDown),
		testDevice("b", "Device B", "10.0.0.2", models.StatusUp),
	}, WithTracer(tp.Tracer("poller-test")))

	waitSettled(t, p.PingAll())

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	byDevice := make(map[string]sdktrace.ReadOnlySpan)

	for _, span := range spans {
		assert.Equal(t, "poller.probe", span.Name())

		attrs := spanAttrs(span)
		assert.Equal(t, triggerBulk, attrs["trigger"])
		byDevice[attrs["device.id"]] = span
	}

	up := byDevice["a"]
	require.NotNil(t, up)
	assert.Equal(t, "10.0.0.1", spanAttrs(up)["device.address"])
	assert.Equal(t, "UP", spanAttrs(up)["device.status"])
	assert.Equal(t, codes.Unset, up.Status().Code)

	failed := byDevice["b"]
	require.NotNil(t, failed)
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "UP", spanAttrs(failed)["device.status"], "a failed probe reports the reverted status")
	require.Len(t, failed.Events(), 1)
	assert.Equal(t, "exception", failed.Events()[0].Name)

	prober.mu.Lock()
	defer prober.mu.Unlock()

	assert.True(t, prober.traced["10.0.0.1"], "probe context must carry the span")
	assert.True(t, prober.traced["10.0.0.2"])
}
