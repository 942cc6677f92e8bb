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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/poller"
	"github.com/carverauto/devicewatch/pkg/store"
	"github.com/carverauto/devicewatch/pkg/version"
	"github.com/carverauto/devicewatch/pkg/views"
)

const (
	maxRegistrationBytes = 1 << 16
	defaultWaitTimeout   = 30 * time.Second
)

// PingResponse reports whether a ping request started any probe. When the
// caller asked to wait, Device holds the settled record.
type PingResponse struct {
	Dispatched bool           `json:"dispatched"`
	Device     *models.Device `json:"device,omitempty"`
}

// StatusResponse reports poller activity.
type StatusResponse struct {
	BulkInFlight bool         `json:"bulk_in_flight"`
	Devices      int          `json:"devices"`
	Version      uint64       `json:"version"`
	Build        version.Info `json:"build"`
}

// SummaryResponse is views.Summary plus its display form.
type SummaryResponse struct {
	views.Summary
	UptimePercent string `json:"uptime_percent"`
}

func filterFromQuery(r *http.Request) views.DeviceFilter {
	q := r.URL.Query()

	return views.DeviceFilter{
		Status:     models.DeviceStatus(q.Get("status")),
		Type:       models.DeviceType(q.Get("type")),
		Department: q.Get("department"),
	}
}

func (s *APIServer) listDevices(w http.ResponseWriter, r *http.Request) {
	devices := views.Filter(s.devices.All(), filterFromQuery(r))

	s.encodeJSONResponse(w, http.StatusOK, devices)
}

func (s *APIServer) getDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	device, err := s.devices.Get(id)
	if errors.Is(err, store.ErrDeviceNotFound) {
		writeError(w, "device not found", http.StatusNotFound)

		return
	}

	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, http.StatusOK, device)
}

func (s *APIServer) registerDevice(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil {
		writeError(w, "registration is not enabled", http.StatusServiceUnavailable)

		return
	}

	var reg models.Registration

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBytes)).Decode(&reg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)

		return
	}

	device, err := s.registrar.Register(&reg)
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(w, verrs)

			return
		}

		s.logger.Error().Err(err).Msg("Failed to register device")
		writeError(w, "failed to register device", http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, http.StatusCreated, device)
}

func (s *APIServer) pingDevice(w http.ResponseWriter, r *http.Request) {
	if s.pinger == nil {
		writeError(w, "polling is not enabled", http.StatusServiceUnavailable)

		return
	}

	id := mux.Vars(r)["id"]

	pending, err := s.pinger.PingOne(id)

	switch {
	case errors.Is(err, poller.ErrDeviceNotFound):
		writeError(w, "device not found", http.StatusNotFound)

		return
	case errors.Is(err, poller.ErrPollerStopped):
		writeError(w, "poller is shutting down", http.StatusServiceUnavailable)

		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	resp := PingResponse{Dispatched: pending.Dispatched()}

	if !wantsWait(r) {
		s.encodeJSONResponse(w, http.StatusAccepted, resp)

		return
	}

	if err := waitFor(r.Context(), pending); err != nil {
		writeError(w, "timed out waiting for probe", http.StatusGatewayTimeout)

		return
	}

	device, err := s.devices.Get(id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	resp.Device = &device

	s.encodeJSONResponse(w, http.StatusOK, resp)
}

func (s *APIServer) pingAll(w http.ResponseWriter, r *http.Request) {
	if s.pinger == nil {
		writeError(w, "polling is not enabled", http.StatusServiceUnavailable)

		return
	}

	pending := s.pinger.PingAll()
	resp := PingResponse{Dispatched: pending.Dispatched()}

	if !wantsWait(r) {
		s.encodeJSONResponse(w, http.StatusAccepted, resp)

		return
	}

	if err := waitFor(r.Context(), pending); err != nil {
		writeError(w, "timed out waiting for bulk ping", http.StatusGatewayTimeout)

		return
	}

	s.encodeJSONResponse(w, http.StatusOK, resp)
}

func wantsWait(r *http.Request) bool {
	wait, err := strconv.ParseBool(r.URL.Query().Get("wait"))

	return err == nil && wait
}

func waitFor(ctx context.Context, pending *poller.Pending) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWaitTimeout)
	defer cancel()

	return pending.Wait(ctx)
}

func (s *APIServer) listDepartments(w http.ResponseWriter, _ *http.Request) {
	s.encodeJSONResponse(w, http.StatusOK, s.views.Departments())
}

func (s *APIServer) getSummary(w http.ResponseWriter, _ *http.Request) {
	summary := s.views.Summary()

	s.encodeJSONResponse(w, http.StatusOK, SummaryResponse{
		Summary:       summary,
		UptimePercent: summary.UptimePercent(),
	})
}

func (s *APIServer) getCharts(w http.ResponseWriter, _ *http.Request) {
	s.encodeJSONResponse(w, http.StatusOK, s.views.Charts())
}

func (s *APIServer) listEvents(w http.ResponseWriter, _ *http.Request) {
	if s.events == nil {
		s.encodeJSONResponse(w, http.StatusOK, []models.EventLogEntry{})

		return
	}

	s.encodeJSONResponse(w, http.StatusOK, s.events.Recent())
}

func (s *APIServer) exportDevices(w http.ResponseWriter, r *http.Request) {
	records := views.ExportRecords(views.Filter(s.devices.All(), filterFromQuery(r)))

	filename := fmt.Sprintf("devices-%s.csv", time.Now().UTC().Format("20060102-150405"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := views.WriteCSV(w, records); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write export")
	}
}

func (s *APIServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Devices: len(s.devices.All()),
		Version: s.devices.Version(),
		Build:   version.Get(),
	}

	if s.pinger != nil {
		resp.BulkInFlight = s.pinger.InFlight()
	}

	s.encodeJSONResponse(w, http.StatusOK, resp)
}
