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

// Package registry admits new devices into the store and seeds the initial
// inventory.
package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

// DeviceInserter is the write side of the device store used by the registry.
type DeviceInserter interface {
	Insert(device models.Device) error
}

// DeviceRegistry validates registrations and inserts fully formed devices.
type DeviceRegistry struct {
	store  DeviceInserter
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// Option customizes a DeviceRegistry.
type Option func(*DeviceRegistry)

// WithClock replaces the source of LastSeen timestamps for new devices.
func WithClock(now func() time.Time) Option {
	return func(r *DeviceRegistry) {
		r.now = now
	}
}

// WithIDGenerator replaces the uuid id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *DeviceRegistry) {
		r.newID = newID
	}
}

// NewDeviceRegistry creates a registry writing into st.
func NewDeviceRegistry(st DeviceInserter, log logger.Logger, opts ...Option) *DeviceRegistry {
	r := &DeviceRegistry{
		store:  st,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register validates reg and, if it is well formed, inserts a new device with
// a fresh id, status UP and LastSeen set to now. Invalid input is rejected
// with models.ValidationErrors and leaves the store untouched.
func (r *DeviceRegistry) Register(reg *models.Registration) (models.Device, error) {
	if err := ValidateRegistration(reg); err != nil {
		return models.Device{}, err
	}

	device := models.Device{
		ID:         r.newID(),
		Name:       strings.TrimSpace(reg.Name),
		Type:       reg.Type,
		Status:     models.StatusUp,
		IPAddress:  reg.IPAddress,
		LastSeen:   r.now(),
		Department: strings.TrimSpace(reg.Department),
	}

	if err := r.store.Insert(device); err != nil {
		return models.Device{}, fmt.Errorf("failed to register device %q: %w", device.Name, err)
	}

	r.logger.Info().
		Str("device_id", device.ID).
		Str("name", device.Name).
		Str("type", string(device.Type)).
		Str("address", device.IPAddress).
		Msg("Device registered")

	return device, nil
}

// Seed inserts an inventory as-is, keeping ids, statuses and timestamps. It
// stops at the first device the store rejects.
func (r *DeviceRegistry) Seed(devices []models.Device) error {
	for i := range devices {
		if err := r.store.Insert(devices[i]); err != nil {
			return fmt.Errorf("failed to seed device %s: %w", devices[i].ID, err)
		}
	}

	r.logger.Info().Int("devices", len(devices)).Msg("Inventory seeded")

	return nil
}
