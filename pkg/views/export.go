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

package views

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/carverauto/devicewatch/pkg/models"
)

// exportTimeLayout matches the millisecond ISO-8601 form used in reports.
const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ExportHeader is the column order of an exported report.
var ExportHeader = []string{"ID", "Name", "Type", "Status", "IP Address", "Last Seen"}

// ExportRecord is one row of a device report.
type ExportRecord struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      models.DeviceType   `json:"type"`
	Status    models.DeviceStatus `json:"status"`
	IPAddress string              `json:"ip_address"`
	LastSeen  time.Time           `json:"last_seen"`
}

// Row renders the record in ExportHeader order.
func (r ExportRecord) Row() []string {
	return []string{
		r.ID,
		r.Name,
		string(r.Type),
		string(r.Status),
		r.IPAddress,
		r.LastSeen.UTC().Format(exportTimeLayout),
	}
}

// ExportRecords projects a snapshot onto report rows, preserving order.
func ExportRecords(snapshot []models.Device) []ExportRecord {
	out := make([]ExportRecord, len(snapshot))

	for i := range snapshot {
		d := &snapshot[i]
		out[i] = ExportRecord{
			ID:        d.ID,
			Name:      d.Name,
			Type:      d.Type,
			Status:    d.Status,
			IPAddress: d.IPAddress,
			LastSeen:  d.LastSeen,
		}
	}

	return out
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []ExportRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}
