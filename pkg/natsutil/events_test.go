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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

var errTestFixture = errors.New("boom")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "devicewatch.events.*",
			want:     []string{"devicewatch.events.*"},
		},
		{
			name:     "keeps list when pattern already present",
			subjects: []string{"devicewatch.events.*"},
			subject:  "devicewatch.events.*",
			want:     []string{"devicewatch.events.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"devicewatch.>"},
			subject:  "devicewatch.events.*",
			want:     []string{"devicewatch.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"logs.syslog.*"},
			subject:  "devicewatch.events.*",
			want:     []string{"logs.syslog.*", "devicewatch.events.*"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "devicewatch.events.error", "devicewatch.events.error", true},
		{"single wildcard", "devicewatch.*.error", "devicewatch.events.error", true},
		{"greater wildcard", "devicewatch.>", "devicewatch.events.error", true},
		{"no match length", "devicewatch.*", "devicewatch.events.error", false},
		{"no match tokens", "logs.syslog.*", "devicewatch.events.error", false},
		{"greater wildcard needs a token", "devicewatch.events.>", "devicewatch.events", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nil", nil, false},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestNewEventPublisherDefaults(t *testing.T) {
	p := NewEventPublisher(nil, nil, logger.NewTestLogger())
	assert.Equal(t, DefaultStream, p.stream)
	assert.Equal(t, "devicewatch.events.error", p.SubjectFor(models.SeverityError))

	p = NewEventPublisher(nil, &models.NATSConfig{
		Stream:  "OPS",
		Subject: "ops.devices.",
		Source:  "site-a",
		Timeout: models.Duration(time.Second),
	}, logger.NewTestLogger())
	assert.Equal(t, "OPS", p.stream)
	assert.Equal(t, "site-a", p.source)
	assert.Equal(t, time.Second, p.timeout)
	assert.Equal(t, "ops.devices.success", p.SubjectFor(models.SeveritySuccess))
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

func connectPublisher(t *testing.T, cfg *models.NATSConfig) (*EventPublisher, *nats.Conn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher, nc, err := Connect(ctx, cfg, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return publisher, nc
}

func TestPublishCloudEvent(t *testing.T) {
	srv := runJetStreamServer(t)
	publisher, _ := connectPublisher(t, &models.NATSConfig{URL: srv.ClientURL()})

	ts := time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC)
	entry := models.EventLogEntry{
		ID:        "evt-1",
		Timestamp: ts,
		Message:   "Ping to Device B failed: simulated failure",
		Severity:  models.SeverityError,
	}

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, entry))

	stream, err := publisher.js.Stream(ctx, DefaultStream)
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, "devicewatch.events.error")
	require.NoError(t, err)

	var got struct {
		models.CloudEvent
		Data models.EventLogEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &got))

	assert.Equal(t, "1.0", got.SpecVersion)
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, DefaultSource, got.Source)
	assert.Equal(t, "com.carverauto.devicewatch.event.error", got.Type)
	assert.Equal(t, "devicewatch.events.error", got.Subject)
	require.NotNil(t, got.Time)
	assert.True(t, ts.Equal(*got.Time))
	assert.Equal(t, entry.Message, got.Data.Message)
	assert.Equal(t, models.SeverityError, got.Data.Severity)
}

func TestConnectAddsSubjectsToExistingStream(t *testing.T) {
	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     DefaultStream,
		Subjects: []string{"legacy.events"},
	})
	require.NoError(t, err)

	connectPublisher(t, &models.NATSConfig{URL: srv.ClientURL()})

	stream, err := js.Stream(ctx, DefaultStream)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy.events", "devicewatch.events.*"}, info.Config.Subjects)
}

func TestRunForwardsUntilClosed(t *testing.T) {
	srv := runJetStreamServer(t)
	publisher, _ := connectPublisher(t, &models.NATSConfig{URL: srv.ClientURL()})

	entries := make(chan models.EventLogEntry, 3)
	entries <- models.EventLogEntry{ID: "a", Timestamp: time.Now(), Message: "Pinging all 3 devices...", Severity: models.SeverityInfo}
	entries <- models.EventLogEntry{ID: "b", Timestamp: time.Now(), Message: "Device A is UP", Severity: models.SeveritySuccess}
	entries <- models.EventLogEntry{ID: "c", Timestamp: time.Now(), Message: "Device B is DOWN", Severity: models.SeverityError}
	close(entries)

	ctx := context.Background()
	require.NoError(t, publisher.Run(ctx, entries))

	stream, err := publisher.js.Stream(ctx, DefaultStream)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)
}

func TestRunStopsOnCancel(t *testing.T) {
	publisher := NewEventPublisher(nil, nil, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Run(ctx, make(chan models.EventLogEntry))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTLSConfigErrors(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrTLSConfigRequired)

	_, err = TLSConfig(&models.TLSConfig{
		CertDir:  t.TempDir(),
		CertFile: "client.pem",
		KeyFile:  "client-key.pem",
		CAFile:   "root.pem",
	})
	require.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/etc/certs/client.pem", resolvePath("/etc/certs", "client.pem"))
	assert.Equal(t, "/abs/client.pem", resolvePath("/etc/certs", "/abs/client.pem"))
	assert.Equal(t, "client.pem", resolvePath("", "client.pem"))
	assert.Empty(t, resolvePath("/etc/certs", ""))
}
