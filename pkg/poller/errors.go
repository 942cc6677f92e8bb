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
	"errors"

	"github.com/carverauto/devicewatch/pkg/store"
)

var (
	// ErrDeviceNotFound is returned by PingOne for an unknown device id.
	ErrDeviceNotFound = store.ErrDeviceNotFound
	// ErrPollerStopped is returned once Stop has been called.
	ErrPollerStopped = errors.New("poller is stopped")

	errStoreRequired   = errors.New("device store is required")
	errEventsRequired  = errors.New("event sink is required")
	errProberRequired  = errors.New("prober is required")
	errInvalidInterval = errors.New("auto_ping_interval must be positive")
	errInvalidTimeout  = errors.New("probe_timeout must not be negative")
	errInvalidLimit    = errors.New("bulk_concurrency must not be negative")
	errInvalidRate     = errors.New("probe_rate_limit must not be negative")
	errInvalidCapacity = errors.New("event_log_capacity must not be negative")
	errAlreadyStarted  = errors.New("auto-ping scheduler already started")
)
