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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/devicewatch/pkg/models"
)

const (
	streamBuffer       = 64
	streamPingInterval = 30 * time.Second
	streamReadTimeout  = 2 * streamPingInterval
	streamWriteTimeout = 10 * time.Second
)

// StreamMessage is one frame on the event stream.
type StreamMessage struct {
	Type      string                 `json:"type"` // snapshot, event or ping
	Events    []models.EventLogEntry `json:"events,omitempty"`
	Event     *models.EventLogEntry  `json:"event,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// handleEventStream pushes event log entries to a WebSocket client as they
// are appended. The first frame carries the retained backlog.
func (s *APIServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, "event streaming is not enabled", http.StatusServiceUnavailable)

		return
	}

	entries := make(chan models.EventLogEntry, streamBuffer)
	s.stream.Subscribe(entries)

	defer s.stream.Unsubscribe(entries)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	defer conn.Close()

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.handleClientMessages(ctx, conn, cancel)

	if err := s.streamEvents(ctx, conn, entries); err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Event stream closed")
	}
}

func (s *APIServer) streamEvents(ctx context.Context, conn *websocket.Conn, entries <-chan models.EventLogEntry) error {
	snapshot := StreamMessage{Type: "snapshot", Events: []models.EventLogEntry{}, Timestamp: time.Now()}
	if s.events != nil {
		snapshot.Events = s.events.Recent()
	}

	if err := writeStreamMessage(conn, &snapshot); err != nil {
		return err
	}

	// The subscription opens before the snapshot is read, so an entry appended
	// in between arrives on both. Drop the channel copy.
	sent := make(map[string]struct{}, len(snapshot.Events))
	for i := range snapshot.Events {
		sent[snapshot.Events[i].ID] = struct{}{}
	}

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteTimeout))

			return ctx.Err()
		case entry := <-entries:
			if _, dup := sent[entry.ID]; dup {
				delete(sent, entry.ID)

				continue
			}

			if err := writeStreamMessage(conn, &StreamMessage{Type: "event", Event: &entry, Timestamp: time.Now()}); err != nil {
				return err
			}
		case <-ticker.C:
			if err := writeStreamMessage(conn, &StreamMessage{Type: "ping", Timestamp: time.Now()}); err != nil {
				return err
			}
		}
	}
}

// handleClientMessages reads (and discards) client frames so that a closed
// connection cancels the stream.
func (s *APIServer) handleClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.logger.Debug().Int("close_code", closeErr.Code).Msg("Event stream client closed")
			} else {
				s.logger.Debug().Err(err).Msg("Event stream read failed")
			}

			return
		}
	}
}

func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	s.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket origin")

	return false
}

func writeStreamMessage(conn *websocket.Conn, msg *StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write %s message: %w", msg.Type, err)
	}

	return nil
}
