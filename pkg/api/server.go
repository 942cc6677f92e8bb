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

// Package api serves the device monitor over HTTP/JSON.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/views"
)

// APIServer routes HTTP requests to the store, poller, registry and event log.
type APIServer struct {
	router    *mux.Router
	devices   DeviceReader
	pinger    Pinger
	registrar Registrar
	events    EventReader
	stream    EventStream
	views     *views.Cache
	logger    logger.Logger

	allowedOrigins []string
}

// NewAPIServer creates an API server over the given device store. The
// remaining collaborators are supplied as options; routes whose collaborator
// is missing answer 503.
func NewAPIServer(devices DeviceReader, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:  mux.NewRouter(),
		devices: devices,
		views:   views.NewCache(devices),
		logger:  log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithPinger enables the ping endpoints.
func WithPinger(p Pinger) func(server *APIServer) {
	return func(server *APIServer) {
		server.pinger = p
	}
}

// WithRegistrar enables device registration.
func WithRegistrar(r Registrar) func(server *APIServer) {
	return func(server *APIServer) {
		server.registrar = r
	}
}

// WithEventReader enables the event log endpoint.
func WithEventReader(e EventReader) func(server *APIServer) {
	return func(server *APIServer) {
		server.events = e
	}
}

// WithEventStream enables the WebSocket event stream.
func WithEventStream(e EventStream) func(server *APIServer) {
	return func(server *APIServer) {
		server.stream = e
	}
}

// WithAllowedOrigins restricts which browser origins may open the event
// stream. With none set every origin is accepted.
func WithAllowedOrigins(origins ...string) func(server *APIServer) {
	return func(server *APIServer) {
		server.allowedOrigins = origins
	}
}

// ServeHTTP implements http.Handler.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *APIServer) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	r := s.router.PathPrefix("/api").Subrouter()

	r.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/devices", s.registerDevice).Methods(http.MethodPost)
	// registered before {id} so "ping" is not taken for a device id
	r.HandleFunc("/devices/ping", s.pingAll).Methods(http.MethodPost)
	r.HandleFunc("/devices/{id}", s.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/ping", s.pingDevice).Methods(http.MethodPost)
	r.HandleFunc("/departments", s.listDepartments).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/charts", s.getCharts).Methods(http.MethodGet)
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/stream", s.handleEventStream).Methods(http.MethodGet)
	r.HandleFunc("/export", s.exportDevices).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
}

func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeErrorResponse(w, models.ErrorResponse{Message: message, Status: statusCode})
}

func writeValidationError(w http.ResponseWriter, errs models.ValidationErrors) {
	resp := models.ErrorResponse{
		Message: "invalid device registration",
		Status:  http.StatusBadRequest,
		Fields:  make([]models.ValidationError, 0, len(errs)),
	}

	for _, e := range errs {
		resp.Fields = append(resp.Fields, *e)
	}

	writeErrorResponse(w, resp)
}

func writeErrorResponse(w http.ResponseWriter, resp models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// Fallback in case encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
