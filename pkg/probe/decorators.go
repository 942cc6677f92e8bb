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
	"time"

	"golang.org/x/time/rate"

	"github.com/carverauto/devicewatch/pkg/models"
)

type timeoutProber struct {
	next    Prober
	timeout time.Duration
}

// WithTimeout bounds every probe by d. A probe that overruns fails with a
// *ProbeError wrapping context.DeadlineExceeded. A non-positive d disables the
// bound.
func WithTimeout(p Prober, d time.Duration) Prober {
	if d <= 0 {
		return p
	}

	return &timeoutProber{next: p, timeout: d}
}

func (t *timeoutProber) Probe(ctx context.Context, address string) (models.DeviceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	status, err := t.next.Probe(ctx, address)

	return Verify(address, status, err)
}

type rateLimitedProber struct {
	next    Prober
	limiter *rate.Limiter
}

// WithRateLimit delays each probe until limiter admits it. A nil limiter
// returns p unchanged.
func WithRateLimit(p Prober, limiter *rate.Limiter) Prober {
	if limiter == nil {
		return p
	}

	return &rateLimitedProber{next: p, limiter: limiter}
}

func (r *rateLimitedProber) Probe(ctx context.Context, address string) (models.DeviceStatus, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &ProbeError{Address: address, Err: err}
	}

	status, err := r.next.Probe(ctx, address)

	return Verify(address, status, err)
}

// NewLimiter converts a probes-per-second budget into a limiter. Zero or less
// means unlimited and yields nil.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}

	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
