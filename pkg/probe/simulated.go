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

package probe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

const (
	defaultMinLatency    = 500 * time.Millisecond
	defaultMaxLatency    = 2000 * time.Millisecond
	defaultUpProbability = 0.8
)

// SimulatedProber stands in for a network probe. It waits a random latency and
// reports UP with a configured probability.
type SimulatedProber struct {
	minLatency  time.Duration
	maxLatency  time.Duration
	upProb      float64
	failureProb float64

	mu  sync.Mutex
	rng *rand.Rand

	logger logger.Logger
}

// SimulatedOption customizes a SimulatedProber.
type SimulatedOption func(*SimulatedProber)

// WithRand replaces the random source. Tests use it for deterministic verdicts.
func WithRand(r *rand.Rand) SimulatedOption {
	return func(p *SimulatedProber) {
		p.rng = r
	}
}

// NewSimulatedProber builds a prober from cfg. Zero latencies fall back to
// 500ms..2s. UpProbability falls back to 0.8 only when cfg is entirely zero,
// so an explicit 0 keeps every verdict DOWN.
func NewSimulatedProber(cfg models.SimulationConfig, log logger.Logger, opts ...SimulatedOption) (*SimulatedProber, error) {
	p := &SimulatedProber{
		minLatency:  time.Duration(cfg.MinLatency),
		maxLatency:  time.Duration(cfg.MaxLatency),
		upProb:      cfg.UpProbability,
		failureProb: cfg.FailureProbability,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation only
		logger:      log,
	}

	if cfg == (models.SimulationConfig{}) {
		p.upProb = defaultUpProbability
	}

	if p.minLatency == 0 && p.maxLatency == 0 {
		p.minLatency = defaultMinLatency
		p.maxLatency = defaultMaxLatency
	}

	if p.maxLatency < p.minLatency || p.minLatency < 0 {
		return nil, fmt.Errorf("%w: min=%s max=%s", errInvalidLatency, p.minLatency, p.maxLatency)
	}

	for _, prob := range []float64{p.upProb, p.failureProb} {
		if prob < 0 || prob > 1 {
			return nil, fmt.Errorf("%w: %v", errInvalidProbability, prob)
		}
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Probe sleeps for the simulated latency, then draws a verdict.
func (p *SimulatedProber) Probe(ctx context.Context, address string) (models.DeviceStatus, error) {
	latency, fail, up := p.draw()

	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", &ProbeError{Address: address, Err: ctx.Err()}
	case <-timer.C:
	}

	if fail {
		return "", &ProbeError{Address: address, Err: ErrSimulatedFailure}
	}

	status := models.StatusDown
	if up {
		status = models.StatusUp
	}

	p.logger.Trace().
		Str("address", address).
		Str("status", string(status)).
		Dur("latency", latency).
		Msg("Simulated probe completed")

	return status, nil
}

func (p *SimulatedProber) draw() (latency time.Duration, fail, up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	latency = p.minLatency
	if spread := p.maxLatency - p.minLatency; spread > 0 {
		latency += time.Duration(p.rng.Int63n(int64(spread)))
	}

	fail = p.failureProb > 0 && p.rng.Float64() < p.failureProb
	up = p.rng.Float64() < p.upProb

	return latency, fail, up
}
