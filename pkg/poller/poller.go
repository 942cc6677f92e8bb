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

// Package poller drives device reachability probes and reconciles their
// outcomes into the device store.
package poller

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/probe"
)

const (
	triggerManual = "manual"
	triggerBulk   = "bulk"
	triggerAuto   = "auto"
)

// Poller owns the per-device status state machine:
//
//	UP/DOWN --dispatch--> PINGING
//	PINGING --verdict--> UP or DOWN, LastSeen advances
//	PINGING --probe error--> pre-dispatch status, LastSeen unchanged
//
// Only the poller sets PINGING, and at most one probe per device is in flight.
type Poller struct {
	config *Config
	store  DeviceStore
	events EventSink
	prober probe.Prober
	clock  Clock
	pick   func(n int) int
	tracer trace.Tracer
	logger logger.Logger

	// ctx bounds every probe and is cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	probes  sync.WaitGroup

	bulkInFlight atomic.Bool
	started      atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock used for timestamps and the auto-ping ticker.
func WithClock(clock Clock) Option {
	return func(p *Poller) {
		p.clock = clock
	}
}

// WithRandom replaces the auto-ping device picker. pick must return a value in [0, n).
func WithRandom(pick func(n int) int) Option {
	return func(p *Poller) {
		p.pick = pick
	}
}

// WithTracer replaces the tracer that spans each probe.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Poller) {
		p.tracer = tracer
	}
}

// New creates a poller. The prober is wrapped with the configured probe
// timeout and rate limit.
func New(
	config *Config, st DeviceStore, events EventSink, prober probe.Prober, log logger.Logger, opts ...Option,
) (*Poller, error) {
	if st == nil {
		return nil, errStoreRequired
	}

	if events == nil {
		return nil, errEventsRequired
	}

	if prober == nil {
		return nil, errProberRequired
	}

	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	prober = probe.WithRateLimit(
		probe.WithTimeout(prober, time.Duration(config.ProbeTimeout)),
		probe.NewLimiter(config.ProbeRateLimit, config.ProbeRateBurst),
	)

	ctx, cancel := context.WithCancel(context.Background())

	p := &Poller{
		config: config,
		store:  st,
		events: events,
		prober: prober,
		clock:  realClock{},
		pick:   rand.Intn,
		tracer: logger.GetTracer(meterName),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// PingOne probes a single device. It returns ErrDeviceNotFound for an unknown
// id. A device that is already PINGING is left untouched and the returned
// Pending reports Dispatched() == false.
func (p *Poller) PingOne(id string) (*Pending, error) {
	return p.pingOne(id, triggerManual)
}

func (p *Poller) pingOne(id, trigger string) (*Pending, error) {
	if !p.begin() {
		return nil, ErrPollerStopped
	}

	before, after, err := p.store.Upsert(id, markPinging)
	if err != nil {
		p.probes.Done()

		return nil, err
	}

	if before.Status == models.StatusPinging {
		p.probes.Done()

		p.logger.Debug().Str("device_id", id).Str("trigger", trigger).Msg("Device already pinging, skipping")

		return skippedPending(), nil
	}

	p.events.Append(fmt.Sprintf("Pinging %s (%s)...", after.Name, after.IPAddress), models.SeverityInfo)

	pending := newPending()

	go func() {
		defer p.probes.Done()
		defer close(pending.done)

		p.settle(after, before.Status, trigger)
	}()

	return pending, nil
}

// PingAll probes every device that is not already PINGING. While a previous
// PingAll is still settling the call is a no-op.
func (p *Poller) PingAll() *Pending {
	if !p.bulkInFlight.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("Bulk ping already in flight, skipping")

		return skippedPending()
	}

	if !p.begin() {
		p.bulkInFlight.Store(false)

		return skippedPending()
	}

	snapshot := p.store.All()

	ids := make([]string, 0, len(snapshot))

	for _, d := range snapshot {
		if d.Status != models.StatusPinging {
			ids = append(ids, d.ID)
		}
	}

	before := p.store.UpsertBatch(ids, markPinging)

	targets := make([]models.Device, 0, len(ids))
	priors := make([]models.DeviceStatus, 0, len(ids))

	for _, d := range snapshot {
		prev, ok := before[d.ID]
		if !ok || prev.Status == models.StatusPinging {
			// raced with a single ping that got there first
			continue
		}

		d.Status = models.StatusPinging
		targets = append(targets, d)
		priors = append(priors, prev.Status)
	}

	p.events.Append(fmt.Sprintf("Pinging all %d devices...", len(targets)), models.SeverityInfo)
	p.logger.Info().Int("devices", len(targets)).Msg("Bulk ping started")

	recordBulkRun(p.ctx)

	pending := newPending()

	go func() {
		defer p.probes.Done()
		defer close(pending.done)

		var g errgroup.Group

		if p.config.BulkConcurrency > 0 {
			g.SetLimit(p.config.BulkConcurrency)
		}

		for i := range targets {
			device, prior := targets[i], priors[i]

			g.Go(func() error {
				p.settle(device, prior, triggerBulk)

				return nil
			})
		}

		_ = g.Wait()

		p.events.Append("Finished pinging all devices.", models.SeverityInfo)
		p.logger.Info().Int("devices", len(targets)).Msg("Bulk ping finished")

		p.bulkInFlight.Store(false)
	}()

	return pending
}

// InFlight reports whether a PingAll is still settling.
func (p *Poller) InFlight() bool {
	return p.bulkInFlight.Load()
}

// Start runs the auto-ping scheduler until ctx is cancelled or Stop is called.
// Each tick dispatches one probe against a randomly chosen idle device and
// never waits for it to settle.
func (p *Poller) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	if p.config.DisableAutoPing {
		p.logger.Info().Msg("Auto-ping disabled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		}
	}

	interval := time.Duration(p.config.AutoPingInterval)

	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", interval).Msg("Starting auto-ping scheduler")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.Chan():
			p.autoPing()
		}
	}
}

// Stop halts the scheduler, cancels in-flight probes and waits for every
// settlement. Cancelled probes revert their devices like any failed probe.
func (p *Poller) Stop(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.done)
		p.cancel()
	})

	settled := make(chan struct{})

	go func() {
		p.probes.Wait()
		close(settled)
	}()

	select {
	case <-settled:
		p.logger.Info().Msg("Poller stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for probes to settle: %w", ctx.Err())
	}
}

func (p *Poller) autoPing() {
	snapshot := p.store.All()

	idle := make([]models.Device, 0, len(snapshot))

	for _, d := range snapshot {
		if d.Status != models.StatusPinging {
			idle = append(idle, d)
		}
	}

	if len(idle) == 0 {
		p.logger.Debug().Msg("No idle device for auto-ping, skipping tick")

		return
	}

	target := idle[p.pick(len(idle))]

	if _, err := p.pingOne(target.ID, triggerAuto); err != nil {
		p.logger.Warn().Err(err).Str("device_id", target.ID).Msg("Auto-ping dispatch failed")
	}
}

// begin registers a settlement with the probe wait group. It fails once Stop
// has been called. Callers must balance a true result with p.probes.Done.
func (p *Poller) begin() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	p.probes.Add(1)

	return true
}

// settle runs one probe and reconciles its outcome into the store. device is
// the record as dispatched; prior is its status before dispatch.
func (p *Poller) settle(device models.Device, prior models.DeviceStatus, trigger string) {
	ctx, span := p.tracer.Start(p.ctx, "poller.probe", trace.WithAttributes(
		attribute.String("device.id", device.ID),
		attribute.String("device.address", device.IPAddress),
		attribute.String("trigger", trigger),
	))
	defer span.End()

	start := p.clock.Now()

	status, err := p.prober.Probe(ctx, device.IPAddress)
	status, err = probe.Verify(device.IPAddress, status, err)

	elapsed := p.clock.Now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		span.SetAttributes(attribute.String("device.status", string(prior)))

		p.revert(device, prior, trigger, elapsed, err)

		return
	}

	span.SetAttributes(attribute.String("device.status", string(status)))

	now := p.clock.Now()

	_, after, uerr := p.store.Upsert(device.ID, func(d models.Device) models.Device {
		d.Status = status

		// LastSeen strictly advances on a verdict.
		if now.After(d.LastSeen) {
			d.LastSeen = now
		} else {
			d.LastSeen = d.LastSeen.Add(time.Nanosecond)
		}

		return d
	})
	if uerr != nil {
		span.SetStatus(codes.Error, "store update failed")
		p.logger.Error().Err(uerr).Str("device_id", device.ID).Msg("Failed to record probe verdict")

		return
	}

	outcome, severity := outcomeUp, models.SeveritySuccess
	if status == models.StatusDown {
		outcome, severity = outcomeDown, models.SeverityError
	}

	p.events.Append(fmt.Sprintf("%s is %s", device.Name, status), severity)

	p.logger.Debug().
		Str("device_id", device.ID).
		Str("address", device.IPAddress).
		Str("status", string(status)).
		Str("trigger", trigger).
		Dur("duration", elapsed).
		Time("last_seen", after.LastSeen).
		Str("trace_id", span.SpanContext().TraceID().String()).
		Msg("Probe settled")

	recordProbe(context.Background(), trigger, outcome, elapsed)
}

func (p *Poller) revert(device models.Device, prior models.DeviceStatus, trigger string, elapsed time.Duration, cause error) {
	_, _, err := p.store.Upsert(device.ID, func(d models.Device) models.Device {
		d.Status = prior

		return d
	})
	if err != nil {
		p.logger.Error().Err(err).Str("device_id", device.ID).Msg("Failed to revert device status")
	}

	p.events.Append(fmt.Sprintf("Ping to %s failed: %v", device.Name, cause), models.SeverityError)

	p.logger.Warn().
		Err(cause).
		Str("device_id", device.ID).
		Str("address", device.IPAddress).
		Str("status", string(prior)).
		Str("trigger", trigger).
		Dur("duration", elapsed).
		Msg("Probe failed, status reverted")

	recordProbe(context.Background(), trigger, outcomeFailed, elapsed)
}

func markPinging(d models.Device) models.Device {
	d.Status = models.StatusPinging

	return d
}
