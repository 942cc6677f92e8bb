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

// Package eventlog keeps a bounded, newest-first audit trail of poller activity.
package eventlog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/devicewatch/pkg/models"
)

// DefaultCapacity is the number of entries retained before the oldest are evicted.
const DefaultCapacity = 50

// Log is an append-only, capacity-bounded event log. It never fails.
type Log struct {
	mu       sync.RWMutex
	entries  []models.EventLogEntry // newest first
	capacity int
	now      func() time.Time

	subsMu sync.RWMutex
	subs   []chan<- models.EventLogEntry
}

// Option configures a Log.
type Option func(*Log)

// WithCapacity overrides DefaultCapacity. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty event log.
func New(opts ...Option) *Log {
	l := &Log{
		capacity: DefaultCapacity,
		now:      time.Now,
	}

	for _, o := range opts {
		o(l)
	}

	l.entries = make([]models.EventLogEntry, 0, l.capacity)

	return l
}

// Append records a new entry at the head of the log, evicting the oldest
// entries beyond capacity, and returns it.
func (l *Log) Append(message string, severity models.Severity) models.EventLogEntry {
	entry := models.EventLogEntry{
		ID:        uuid.New().String(),
		Timestamp: l.now(),
		Message:   message,
		Severity:  severity,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, models.EventLogEntry{})
	}

	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry

	// Publishing under mu keeps subscriber order identical to Recent().
	l.publish(entry)

	return entry
}

// Recent returns a copy of the retained entries, newest first.
func (l *Log) Recent() []models.EventLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.EventLogEntry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return l.capacity
}

// Subscribe registers ch to receive every appended entry. Sends never block;
// entries are dropped for a subscriber that is not keeping up.
func (l *Log) Subscribe(ch chan<- models.EventLogEntry) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	l.subs = append(l.subs, ch)
}

// Unsubscribe removes ch. The channel is not closed.
func (l *Log) Unsubscribe(ch chan<- models.EventLogEntry) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for i, sub := range l.subs {
		if sub == ch {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)

			return
		}
	}
}

func (l *Log) publish(entry models.EventLogEntry) {
	l.subsMu.RLock()
	defer l.subsMu.RUnlock()

	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}
