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
	"time"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

const (
	defaultServiceName      = "devicewatch"
	defaultListenAddr       = ":8090"
	defaultAutoPingInterval = 10 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultEventLogCapacity = 50
)

// Config represents the devicewatch service configuration.
type Config struct {
	ListenAddr       string                  `json:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins   []string                `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	ServiceName      string                  `json:"service_name" yaml:"service_name"`
	AutoPingInterval models.Duration         `json:"auto_ping_interval" yaml:"auto_ping_interval"`
	DisableAutoPing  bool                    `json:"disable_auto_ping" yaml:"disable_auto_ping"`
	ProbeTimeout     models.Duration         `json:"probe_timeout" yaml:"probe_timeout"`
	BulkConcurrency  int                     `json:"bulk_concurrency" yaml:"bulk_concurrency"` // 0 means one goroutine per device
	ProbeRateLimit   float64                 `json:"probe_rate_limit" yaml:"probe_rate_limit"` // probes per second, 0 disables
	ProbeRateBurst   int                     `json:"probe_rate_burst" yaml:"probe_rate_burst"`
	EventLogCapacity int                     `json:"event_log_capacity" yaml:"event_log_capacity"`
	InventoryFile    string                  `json:"inventory_file,omitempty" yaml:"inventory_file,omitempty"`
	Simulation       models.SimulationConfig `json:"simulation" yaml:"simulation"`
	NATS             *models.NATSConfig      `json:"nats,omitempty" yaml:"nats,omitempty"`
	Logging          *logger.Config          `json:"logging,omitempty" yaml:"logging,omitempty"`
	Metrics          *logger.OTelConfig      `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.AutoPingInterval == 0 {
		c.AutoPingInterval = models.Duration(defaultAutoPingInterval)
	}

	if c.AutoPingInterval < 0 {
		return errInvalidInterval
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if c.ProbeTimeout < 0 {
		return errInvalidTimeout
	}

	if c.BulkConcurrency < 0 {
		return errInvalidLimit
	}

	if c.ProbeRateLimit < 0 {
		return errInvalidRate
	}

	if c.EventLogCapacity == 0 {
		c.EventLogCapacity = defaultEventLogCapacity
	}

	if c.EventLogCapacity < 0 {
		return errInvalidCapacity
	}

	if c.NATS != nil && c.NATS.URL == "" {
		c.NATS = nil
	}

	return nil
}
