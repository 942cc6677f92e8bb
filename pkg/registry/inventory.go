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

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/carverauto/devicewatch/pkg/models"
)

var errInvalidInventory = errors.New("invalid inventory")

type inventoryFile struct {
	Devices []models.Device `json:"devices" yaml:"devices"`
}

// LoadInventory reads a device list from a YAML (.yaml, .yml) or JSON file.
// The document is an object with a "devices" list. Records without an id get
// a uuid, without a status get UP, and without a timestamp get now.
func LoadInventory(path string) ([]models.Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file '%s': %w", path, err)
	}

	var inv inventoryFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &inv)
	default:
		err = json.Unmarshal(data, &inv)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory file '%s': %w", path, err)
	}

	return normalizeInventory(inv.Devices, time.Now())
}

func normalizeInventory(devices []models.Device, now time.Time) ([]models.Device, error) {
	seen := make(map[string]struct{}, len(devices))

	for i := range devices {
		d := &devices[i]

		if d.ID == "" {
			d.ID = uuid.NewString()
		}

		if d.Status == "" {
			d.Status = models.StatusUp
		}

		if d.LastSeen.IsZero() {
			d.LastSeen = now
		}

		if errs := validateSeed(d); len(errs) > 0 {
			return nil, fmt.Errorf("%w: device %d (%s): %w", errInvalidInventory, i, d.ID, errs)
		}

		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate device id %s", errInvalidInventory, d.ID)
		}

		seen[d.ID] = struct{}{}
	}

	return devices, nil
}

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}

	return t
}

// DefaultInventory returns the demonstration fleet used when no inventory
// file is configured.
func DefaultInventory() []models.Device {
	return []models.Device{
		{ID: "p001", Name: "Lobby Printer", Type: models.TypePrinter, Status: models.StatusUp, IPAddress: "192.168.1.10", LastSeen: mustTime("2023-10-27T10:00:00Z"), Department: "Lobby"},
		{ID: "p002", Name: "HR Office Printer", Type: models.TypePrinter, Status: models.StatusUp, IPAddress: "192.168.1.11", LastSeen: mustTime("2023-10-27T10:01:00Z"), Department: "HR"},
		{ID: "p003", Name: "Warehouse Printer", Type: models.TypePrinter, Status: models.StatusDown, IPAddress: "192.168.1.12", LastSeen: mustTime("2023-10-26T08:30:00Z"), Department: "Warehouse"},
		{ID: "ph001", Name: "Reception Phone", Type: models.TypePhone, Status: models.StatusUp, IPAddress: "192.168.2.20", LastSeen: mustTime("2023-10-27T10:02:00Z"), Department: "Lobby"},
		{ID: "ph002", Name: "CEO Office Phone", Type: models.TypePhone, Status: models.StatusUp, IPAddress: "192.168.2.21", LastSeen: mustTime("2023-10-27T10:02:15Z"), Department: "Executive"},
		{ID: "ph003", Name: "Conference Room Phone", Type: models.TypePhone, Status: models.StatusUp, IPAddress: "192.168.2.22", LastSeen: mustTime("2023-10-27T10:02:30Z"), Department: "Conference"},
		{ID: "ph004", Name: "Sales Floor Phone 1", Type: models.TypePhone, Status: models.StatusDown, IPAddress: "192.168.2.23", LastSeen: mustTime("2023-10-27T01:15:00Z"), Department: "Sales"},
		{ID: "ph005", Name: "Sales Floor Phone 2", Type: models.TypePhone, Status: models.StatusUp, IPAddress: "192.168.2.24", LastSeen: mustTime("2023-10-27T10:02:45Z"), Department: "Sales"},
		{ID: "tc001", Name: "Main Entrance Time Clock", Type: models.TypeTimeClock, Status: models.StatusUp, IPAddress: "192.168.3.30", LastSeen: mustTime("2023-10-27T09:59:00Z"), Department: "Lobby"},
		{ID: "tc002", Name: "Warehouse Time Clock", Type: models.TypeTimeClock, Status: models.StatusUp, IPAddress: "192.168.3.31", LastSeen: mustTime("2023-10-27T09:59:30Z"), Department: "Warehouse"},
		{ID: "tc003", Name: "Loading Dock Time Clock", Type: models.TypeTimeClock, Status: models.StatusDown, IPAddress: "192.168.3.32", LastSeen: mustTime("2023-10-25T17:00:00Z"), Department: "Warehouse"},
		{ID: "p004", Name: "Marketing Printer", Type: models.TypePrinter, Status: models.StatusUp, IPAddress: "192.168.1.13", LastSeen: mustTime("2023-10-27T10:01:30Z"), Department: "Marketing"},
		{ID: "ph006", Name: "Support Desk Phone", Type: models.TypePhone, Status: models.StatusUp, IPAddress: "192.168.2.25", LastSeen: mustTime("2023-10-27T10:03:00Z"), Department: "Support"},
	}
}
