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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/carverauto/devicewatch/pkg/models"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{NATS: &models.NATSConfig{}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, models.Duration(defaultAutoPingInterval), cfg.AutoPingInterval)
	assert.Equal(t, models.Duration(defaultProbeTimeout), cfg.ProbeTimeout)
	assert.Equal(t, defaultEventLogCapacity, cfg.EventLogCapacity)
	assert.Nil(t, cfg.NATS, "a NATS block without url is dropped")
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "negative interval", cfg: Config{AutoPingInterval: models.Duration(-time.Second)}, err: errInvalidInterval},
		{name: "negative timeout", cfg: Config{ProbeTimeout: models.Duration(-time.Second)}, err: errInvalidTimeout},
		{name: "negative concurrency", cfg: Config{BulkConcurrency: -2}, err: errInvalidLimit},
		{name: "negative rate", cfg: Config{ProbeRateLimit: -1}, err: errInvalidRate},
		{name: "negative capacity", cfg: Config{EventLogCapacity: -1}, err: errInvalidCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Validate(), tt.err)
		})
	}
}

func TestConfigDecoding(t *testing.T) {
	jsonConfig := `{
		"listen_addr": ":9000",
		"auto_ping_interval": "30s",
		"probe_timeout": 2000000000,
		"bulk_concurrency": 4,
		"simulation": {"min_latency": "100ms", "max_latency": "200ms", "up_probability": 0.5},
		"nats": {"url": "nats://localhost:4222", "stream": "devicewatch"},
		"logging": {"level": "debug"}
	}`

	var fromJSON Config
	require.NoError(t, json.Unmarshal([]byte(jsonConfig), &fromJSON))
	require.NoError(t, fromJSON.Validate())

	yamlConfig := `
listen_addr: ":9000"
auto_ping_interval: 30s
probe_timeout: 2000000000
bulk_concurrency: 4
simulation:
  min_latency: 100ms
  max_latency: 200ms
  up_probability: 0.5
nats:
  url: nats://localhost:4222
  stream: devicewatch
logging:
  level: debug
`

	var fromYAML Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlConfig), &fromYAML))
	require.NoError(t, fromYAML.Validate())

	for _, cfg := range []Config{fromJSON, fromYAML} {
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, models.Duration(30*time.Second), cfg.AutoPingInterval)
		assert.Equal(t, models.Duration(2*time.Second), cfg.ProbeTimeout)
		assert.Equal(t, 4, cfg.BulkConcurrency)
		assert.Equal(t, models.Duration(100*time.Millisecond), cfg.Simulation.MinLatency)
		assert.InDelta(t, 0.5, cfg.Simulation.UpProbability, 1e-9)
		require.NotNil(t, cfg.NATS)
		assert.Equal(t, "devicewatch", cfg.NATS.Stream)
		require.NotNil(t, cfg.Logging)
		assert.Equal(t, "debug", cfg.Logging.Level)
	}
}
