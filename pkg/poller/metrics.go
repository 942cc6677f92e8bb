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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/devicewatch/pkg/poller"

	metricProbeTotal    = "devicewatch_probe_total"
	metricProbeLatency  = "devicewatch_probe_latency_seconds"
	metricBulkRunsTotal = "devicewatch_bulk_ping_runs_total"

	outcomeUp     = "up"
	outcomeDown   = "down"
	outcomeFailed = "failed"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeHistogram metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	bulkCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricProbeTotal,
		metric.WithDescription("Total settled device probes by outcome and trigger"),
	)
	if err != nil {
		otel.Handle(err)
	}

	probeCounter = counter

	hist, err := meter.Float64Histogram(
		metricProbeLatency,
		metric.WithDescription("Time from dispatch to settlement of a device probe"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	probeHistogram = hist

	bulk, err := meter.Int64Counter(
		metricBulkRunsTotal,
		metric.WithDescription("Total bulk ping runs started"),
	)
	if err != nil {
		otel.Handle(err)
	}

	bulkCounter = bulk
}

func recordProbe(ctx context.Context, trigger, outcome string, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome),
	)

	if probeCounter != nil {
		probeCounter.Add(ctx, 1, attrs)
	}

	if probeHistogram != nil {
		probeHistogram.Record(ctx, duration.Seconds(), attrs)
	}
}

func recordBulkRun(ctx context.Context) {
	meterOnce.Do(initMeter)

	if bulkCounter == nil {
		return
	}

	bulkCounter.Add(ctx, 1)
}
