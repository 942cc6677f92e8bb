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

package models

import (
	"time"
)

// DeviceStatus is the reachability state of a monitored device.
type DeviceStatus string

const (
	StatusUp      DeviceStatus = "UP"
	StatusDown    DeviceStatus = "DOWN"
	StatusPinging DeviceStatus = "Pinging..."
)

// KnownStatuses lists every status a device can hold, in display order.
var KnownStatuses = []DeviceStatus{StatusUp, StatusDown, StatusPinging}

// IsConfirmed reports whether the status is a settled probe verdict (UP or DOWN).
func (s DeviceStatus) IsConfirmed() bool {
	return s == StatusUp || s == StatusDown
}

// IsValid reports whether s is one of KnownStatuses.
func (s DeviceStatus) IsValid() bool {
	return s.IsConfirmed() || s == StatusPinging
}

// DeviceType classifies monitored equipment.
type DeviceType string

const (
	TypePrinter   DeviceType = "Printer"
	TypePhone     DeviceType = "Phone"
	TypeTimeClock DeviceType = "Time Clock"
)

// KnownDeviceTypes lists the accepted device types. New equipment classes are
// added here.
var KnownDeviceTypes = []DeviceType{TypePrinter, TypePhone, TypeTimeClock}

// IsValid reports whether t is one of KnownDeviceTypes.
func (t DeviceType) IsValid() bool {
	for _, known := range KnownDeviceTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Device is a monitored network endpoint and its last known reachability.
type Device struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Type       DeviceType   `json:"type" yaml:"type"`
	Status     DeviceStatus `json:"status" yaml:"status"`
	IPAddress  string       `json:"ip_address" yaml:"ip_address"`
	LastSeen   time.Time    `json:"last_seen" yaml:"last_seen"`
	Department string       `json:"department,omitempty" yaml:"department,omitempty"`
}

// Registration is the operator-supplied input for a new device. Identity,
// status and timestamp are assigned by the registry.
type Registration struct {
	Name       string     `json:"name"`
	Type       DeviceType `json:"type"`
	IPAddress  string     `json:"ip_address"`
	Department string     `json:"department,omitempty"`
}
