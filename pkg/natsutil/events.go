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

// Package natsutil forwards event log entries to NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

const (
	DefaultStream  = "DEVICEWATCH_EVENTS"
	DefaultSubject = "devicewatch.events"
	DefaultSource  = "devicewatch/poller"

	eventTypePrefix = "com.carverauto.devicewatch.event."
	defaultTimeout  = 5 * time.Second
)

// EventPublisher publishes event log entries to a JetStream stream. Each
// entry goes to <subject>.<severity>, e.g. devicewatch.events.error.
type EventPublisher struct {
	js      jetstream.JetStream
	stream  string
	subject string
	source  string
	timeout time.Duration
	logger  logger.Logger
}

// NewEventPublisher creates a new EventPublisher for the configured stream.
func NewEventPublisher(js jetstream.JetStream, cfg *models.NATSConfig, log logger.Logger) *EventPublisher {
	p := &EventPublisher{
		js:      js,
		stream:  DefaultStream,
		subject: DefaultSubject,
		source:  DefaultSource,
		timeout: defaultTimeout,
		logger:  log,
	}

	if cfg == nil {
		return p
	}

	if cfg.Stream != "" {
		p.stream = cfg.Stream
	}

	if cfg.Subject != "" {
		p.subject = strings.TrimSuffix(cfg.Subject, ".")
	}

	if cfg.Source != "" {
		p.source = cfg.Source
	}

	if cfg.Timeout > 0 {
		p.timeout = time.Duration(cfg.Timeout)
	}

	return p
}

// SubjectFor returns the subject an entry of the given severity is published on.
func (p *EventPublisher) SubjectFor(severity models.Severity) string {
	return p.subject + "." + severity.Subject()
}

// Publish sends one entry as a CloudEvent.
func (p *EventPublisher) Publish(ctx context.Context, entry models.EventLogEntry) error {
	ts := entry.Timestamp

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              entry.ID,
		Source:          p.source,
		Type:            eventTypePrefix + entry.Severity.Subject(),
		DataContentType: "application/json",
		Subject:         p.SubjectFor(entry.Severity),
		Time:            &ts,
		Data:            entry,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", entry.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", entry.ID, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

// Run forwards entries until ctx is cancelled or entries is closed. Publish
// failures are logged and do not stop forwarding.
func (p *EventPublisher) Run(ctx context.Context, entries <-chan models.EventLogEntry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				return nil
			}

			if err := p.Publish(ctx, entry); err != nil {
				p.logger.Warn().Err(err).Str("event_id", entry.ID).Msg("Failed to forward event")
			}
		}
	}
}

// Connect dials NATS, ensures the stream exists and covers the event
// subjects, and returns a publisher together with the connection the caller
// must close.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*EventPublisher, *nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("devicewatch"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.TLS != nil {
		tlsConf, err := TLSConfig(cfg.TLS)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")

	publisher, err := CreateEventPublisher(ctx, nc, cfg, log)
	if err != nil {
		nc.Close()

		return nil, nil, err
	}

	return publisher, nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS
// connection, honouring the optional JetStream domain.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, cfg *models.NATSConfig, log logger.Logger) (*EventPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if cfg != nil && cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", cfg.Domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	publisher := NewEventPublisher(js, cfg, log)

	if err := publisher.ensureStream(ctx); err != nil {
		return nil, err
	}

	return publisher, nil
}

func (p *EventPublisher) ensureStream(ctx context.Context) error {
	wildcard := p.subject + ".*"

	stream, err := p.js.Stream(ctx, p.stream)
	if isStreamMissingErr(err) {
		_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     p.stream,
			Subjects: []string{wildcard},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", p.stream, err)
		}

		p.logger.Info().Str("stream", p.stream).Str("subjects", wildcard).Msg("Created NATS JetStream stream")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get stream %s: %w", p.stream, err)
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(append([]string(nil), cfg.Subjects...), wildcard)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := p.js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add %s to stream %s: %w", wildcard, p.stream, err)
	}

	p.logger.Info().Str("stream", p.stream).Strs("subjects", subjects).Msg("Updated NATS JetStream stream subjects")

	return nil
}

func isStreamMissingErr(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse)
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether a NATS subject pattern covers subject. The
// subject may itself contain wildcards, which then only match the same token.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, pt := range pTokens {
		if pt == ">" {
			return len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if pt != "*" && pt != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}
