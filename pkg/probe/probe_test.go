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
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

func fastSimulation(up, failure float64) models.SimulationConfig {
	return models.SimulationConfig{
		MinLatency:         models.Duration(time.Millisecond),
		MaxLatency:         models.Duration(2 * time.Millisecond),
		UpProbability:      up,
		FailureProbability: failure,
	}
}

func TestSimulatedProberVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		cfg      models.SimulationConfig
		expected models.DeviceStatus
		wantErr  error
	}{
		{name: "always up", cfg: fastSimulation(1, 0), expected: models.StatusUp},
		{name: "always down", cfg: fastSimulation(1e-12, 0), expected: models.StatusDown},
		{name: "always fails", cfg: fastSimulation(1, 1), wantErr: ErrSimulatedFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewSimulatedProber(tt.cfg, logger.NewTestLogger(), WithRand(rand.New(rand.NewSource(1))))
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				status, err := p.Probe(context.Background(), "192.168.1.10")

				if tt.wantErr != nil {
					var pe *ProbeError

					require.ErrorAs(t, err, &pe)
					assert.Equal(t, "192.168.1.10", pe.Address)
					require.ErrorIs(t, err, tt.wantErr)

					continue
				}

				require.NoError(t, err)
				assert.Equal(t, tt.expected, status)
			}
		})
	}
}

func TestSimulatedProberDefaults(t *testing.T) {
	p, err := NewSimulatedProber(models.SimulationConfig{}, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, defaultMinLatency, p.minLatency)
	assert.Equal(t, defaultMaxLatency, p.maxLatency)
	assert.InDelta(t, defaultUpProbability, p.upProb, 1e-9)
	assert.Zero(t, p.failureProb)
}

func TestSimulatedProberZeroUpProbability(t *testing.T) {
	p, err := NewSimulatedProber(fastSimulation(0, 0), logger.NewTestLogger(), WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	assert.Zero(t, p.upProb)

	for i := 0; i < 20; i++ {
		status, err := p.Probe(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDown, status)
	}
}

func TestSimulatedProberInvalidConfig(t *testing.T) {
	_, err := NewSimulatedProber(models.SimulationConfig{
		MinLatency: models.Duration(2 * time.Second),
		MaxLatency: models.Duration(time.Second),
	}, logger.NewTestLogger())
	require.ErrorIs(t, err, errInvalidLatency)

	_, err = NewSimulatedProber(fastSimulation(1.5, 0), logger.NewTestLogger())
	require.ErrorIs(t, err, errInvalidProbability)
}

func TestSimulatedProberHonoursCancellation(t *testing.T) {
	p, err := NewSimulatedProber(models.SimulationConfig{
		MinLatency: models.Duration(time.Hour),
		MaxLatency: models.Duration(time.Hour),
	}, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Probe(ctx, "10.0.0.1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockProber(ctrl)

	mock.EXPECT().
		Probe(gomock.Any(), "10.0.0.1").
		DoAndReturn(func(ctx context.Context, _ string) (models.DeviceStatus, error) {
			<-ctx.Done()

			return "", ctx.Err()
		})

	p := WithTimeout(mock, 10*time.Millisecond)

	_, err := p.Probe(context.Background(), "10.0.0.1")

	var pe *ProbeError

	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Same(t, Prober(mock), WithTimeout(mock, 0))
}

func TestWithRateLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockProber(ctrl)

	mock.EXPECT().Probe(gomock.Any(), "10.0.0.1").Return(models.StatusUp, nil).Times(1)

	p := WithRateLimit(mock, rate.NewLimiter(rate.Every(time.Hour), 1))

	status, err := p.Probe(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, status)

	// the second token is an hour away; the probe must give up with ctx
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Probe(ctx, "10.0.0.1")

	var pe *ProbeError

	require.ErrorAs(t, err, &pe)

	assert.Nil(t, NewLimiter(0, 1))
	assert.NotNil(t, NewLimiter(5, 0))
}

func TestVerify(t *testing.T) {
	status, err := Verify("a", models.StatusDown, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, status)

	_, err = Verify("a", models.StatusPinging, nil)
	require.ErrorIs(t, err, ErrInvalidVerdict)

	plain := errors.New("boom")
	_, err = Verify("a", "", plain)

	var pe *ProbeError

	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, plain)

	wrapped := &ProbeError{Address: "b", Err: plain}
	_, err = Verify("a", "", wrapped)
	assert.Same(t, wrapped, err)
}
