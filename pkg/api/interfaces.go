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

package api

import (
	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/poller"
)

// DeviceReader is the read side of the device store.
type DeviceReader interface {
	Get(id string) (models.Device, error)
	All() []models.Device
	Version() uint64
}

// Pinger dispatches probes.
type Pinger interface {
	PingOne(id string) (*poller.Pending, error)
	PingAll() *poller.Pending
	InFlight() bool
}

// Registrar admits new devices.
type Registrar interface {
	Register(reg *models.Registration) (models.Device, error)
}

// EventReader exposes the recent activity log.
type EventReader interface {
	Recent() []models.EventLogEntry
}

// EventStream delivers event log entries as they are appended.
type EventStream interface {
	Subscribe(ch chan<- models.EventLogEntry)
	Unsubscribe(ch chan<- models.EventLogEntry)
}
