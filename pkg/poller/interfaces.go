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

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/devicewatch/pkg/poller Clock,Ticker

import (
	"time"

	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/store"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// DeviceStore is the subset of the device store the poller mutates.
type DeviceStore interface {
	Get(id string) (models.Device, error)
	All() []models.Device
	Upsert(id string, mutate store.Mutator) (before, after models.Device, err error)
	UpsertBatch(ids []string, mutate store.Mutator) map[string]models.Device
}

// EventSink records human-readable outcomes.
type EventSink interface {
	Append(message string, severity models.Severity) models.EventLogEntry
}
