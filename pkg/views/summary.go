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
	"fmt"

	"github.com/carverauto/devicewatch/pkg/models"
)

// Summary counts devices by status. Total includes devices being pinged.
type Summary struct {
	Total   int     `json:"total"`
	Up      int     `json:"up"`
	Down    int     `json:"down"`
	Pinging int     `json:"pinging"`
	Uptime  float64 `json:"uptime"`
}

// UptimePercent renders Uptime with one decimal, e.g. "83.3%".
func (s Summary) UptimePercent() string {
	return fmt.Sprintf("%.1f%%", s.Uptime*100)
}

// Summarize computes the status counts and the UP ratio of a snapshot.
func Summarize(snapshot []models.Device) Summary {
	s := Summary{Total: len(snapshot)}

	for i := range snapshot {
		switch snapshot[i].Status {
		case models.StatusUp:
			s.Up++
		case models.StatusDown:
			s.Down++
		case models.StatusPinging:
			s.Pinging++
		}
	}

	if s.Total > 0 {
		s.Uptime = float64(s.Up) / float64(s.Total)
	}

	return s
}

// StatusCount is one slice of the overall status chart.
type StatusCount struct {
	Status models.DeviceStatus `json:"status"`
	Count  int                 `json:"count"`
}

// TypeBreakdown counts confirmed statuses for one device type.
type TypeBreakdown struct {
	Type models.DeviceType `json:"type"`
	Up   int               `json:"up"`
	Down int               `json:"down"`
}

// Charts holds the aggregates behind the overall and per-type charts.
type Charts struct {
	Overall []StatusCount   `json:"overall"`
	ByType  []TypeBreakdown `json:"by_type"`
}

// ChartAggregates groups confirmed devices by status and by type. Devices that
// are PINGING are left out. Overall lists UP then DOWN, omitting empty
// statuses; ByType follows the order in which types first appear.
func ChartAggregates(snapshot []models.Device) Charts {
	var up, down int

	index := make(map[models.DeviceType]int)
	byType := make([]TypeBreakdown, 0)

	for i := range snapshot {
		d := &snapshot[i]
		if !d.Status.IsConfirmed() {
			continue
		}

		pos, ok := index[d.Type]
		if !ok {
			pos = len(byType)
			index[d.Type] = pos
			byType = append(byType, TypeBreakdown{Type: d.Type})
		}

		if d.Status == models.StatusUp {
			up++
			byType[pos].Up++
		} else {
			down++
			byType[pos].Down++
		}
	}

	overall := make([]StatusCount, 0, 2)

	if up > 0 {
		overall = append(overall, StatusCount{Status: models.StatusUp, Count: up})
	}

	if down > 0 {
		overall = append(overall, StatusCount{Status: models.StatusDown, Count: down})
	}

	return Charts{Overall: overall, ByType: byType}
}
