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

// Package views derives read-only projections from a device snapshot.
// Every function is pure and safe to call on any snapshot.
package views

import (
	"sort"

	"github.com/carverauto/devicewatch/pkg/models"
)

// DeviceFilter selects devices. An empty field matches everything.
type DeviceFilter struct {
	Status     models.DeviceStatus `json:"status,omitempty"`
	Type       models.DeviceType   `json:"type,omitempty"`
	Department string              `json:"department,omitempty"`
}

// IsZero reports whether no criterion is set.
func (f DeviceFilter) IsZero() bool {
	return f == DeviceFilter{}
}

func (f DeviceFilter) matches(d *models.Device) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}

	if f.Type != "" && d.Type != f.Type {
		return false
	}

	if f.Department != "" && d.Department != f.Department {
		return false
	}

	return true
}

// Filter returns the devices matching every set criterion, in snapshot order.
// With no criteria set the snapshot itself is returned.
func Filter(snapshot []models.Device, filter DeviceFilter) []models.Device {
	if filter.IsZero() {
		return snapshot
	}

	out := make([]models.Device, 0, len(snapshot))

	for i := range snapshot {
		if filter.matches(&snapshot[i]) {
			out = append(out, snapshot[i])
		}
	}

	return out
}

// Departments returns the distinct non-empty departments, sorted ascending.
func Departments(snapshot []models.Device) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)

	for i := range snapshot {
		dept := snapshot[i].Department
		if dept == "" {
			continue
		}

		if _, ok := seen[dept]; ok {
			continue
		}

		seen[dept] = struct{}{}
		out = append(out, dept)
	}

	sort.Strings(out)

	return out
}
