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

// Package store holds the authoritative collection of monitored devices.
package store

import (
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
)

const (
	minShards = 4
	maxShards = 16
)

// Mutator transforms one device record. It must not retain or share the
// record and must not block.
type Mutator func(models.Device) models.Device

// InMemoryStore is a sharded, insertion-ordered device collection. Updates to
// one id are serialized by that id's shard lock; updates to ids on different
// shards proceed in parallel.
type InMemoryStore struct {
	shards     []*storeShard
	shardCount int

	// orderMu guards order and must be acquired before any shard lock.
	orderMu sync.RWMutex
	order   []string

	version atomic.Uint64

	subsMu sync.RWMutex
	subs   []chan<- uint64

	logger logger.Logger
}

type storeShard struct {
	mu      sync.Mutex
	devices map[string]models.Device
}

// NewInMemoryStore creates an empty device store.
func NewInMemoryStore(log logger.Logger) *InMemoryStore {
	shards := runtime.GOMAXPROCS(0)
	if shards < minShards {
		shards = minShards
	}

	if shards > maxShards {
		shards = maxShards
	}

	s := &InMemoryStore{
		shards:     make([]*storeShard, shards),
		shardCount: shards,
		logger:     log,
	}

	for i := 0; i < shards; i++ {
		s.shards[i] = &storeShard{devices: make(map[string]models.Device)}
	}

	return s
}

// shardIndex hashes the device id to a shard index.
func (s *InMemoryStore) shardIndex(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))

	return int(h.Sum32() % uint32(s.shardCount))
}

func (s *InMemoryStore) shardFor(id string) *storeShard {
	return s.shards[s.shardIndex(id)]
}

// Get returns a copy of the device with the given id.
func (s *InMemoryStore) Get(id string) (models.Device, error) {
	sh := s.shardFor(id)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	d, ok := sh.devices[id]
	if !ok {
		return models.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	return d, nil
}

// All returns a point-in-time copy of every device in insertion order.
func (s *InMemoryStore) All() []models.Device {
	s.orderMu.RLock()
	defer s.orderMu.RUnlock()

	s.lockAll()
	defer s.unlockAll()

	out := make([]models.Device, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.shardFor(id).devices[id])
	}

	return out
}

// Len returns the number of stored devices.
func (s *InMemoryStore) Len() int {
	s.orderMu.RLock()
	defer s.orderMu.RUnlock()

	return len(s.order)
}

// Insert adds a new device. It fails with ErrDuplicateID if the id exists.
func (s *InMemoryStore) Insert(device models.Device) error {
	if device.ID == "" {
		return ErrEmptyID
	}

	s.orderMu.Lock()

	sh := s.shardFor(device.ID)
	sh.mu.Lock()

	if _, exists := sh.devices[device.ID]; exists {
		sh.mu.Unlock()
		s.orderMu.Unlock()

		return fmt.Errorf("%w: %s", ErrDuplicateID, device.ID)
	}

	sh.devices[device.ID] = device
	s.order = append(s.order, device.ID)

	sh.mu.Unlock()
	s.orderMu.Unlock()

	s.logger.Debug().Str("device_id", device.ID).Str("name", device.Name).Msg("Device inserted")

	s.notify()

	return nil
}

// Upsert applies mutate to exactly one device and atomically replaces it.
// It returns the record as it was before and after the mutation. The id is
// immutable; any change the mutator makes to it is discarded.
func (s *InMemoryStore) Upsert(id string, mutate Mutator) (before, after models.Device, err error) {
	sh := s.shardFor(id)

	sh.mu.Lock()

	before, ok := sh.devices[id]
	if !ok {
		sh.mu.Unlock()

		return models.Device{}, models.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	after = mutate(before)
	after.ID = id
	sh.devices[id] = after

	sh.mu.Unlock()

	if after != before {
		s.notify()
	}

	return before, after, nil
}

// UpsertBatch applies mutate to every listed device under a single critical
// section, so readers observe either none or all of the batch. Unknown ids are
// skipped. It returns the pre-mutation records keyed by id.
func (s *InMemoryStore) UpsertBatch(ids []string, mutate Mutator) map[string]models.Device {
	before := make(map[string]models.Device, len(ids))

	s.lockAll()

	for _, id := range ids {
		sh := s.shardFor(id)

		d, ok := sh.devices[id]
		if !ok {
			continue
		}

		before[id] = d

		updated := mutate(d)
		updated.ID = id
		sh.devices[id] = updated
	}

	s.unlockAll()

	if len(before) > 0 {
		s.notify()
	}

	return before
}

// Version increases on every change to the collection.
func (s *InMemoryStore) Version() uint64 {
	return s.version.Load()
}

// Subscribe registers ch to receive the new version after each change.
// Sends never block; a slow subscriber misses intermediate versions.
func (s *InMemoryStore) Subscribe(ch chan<- uint64) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.subs = append(s.subs, ch)
}

func (s *InMemoryStore) notify() {
	v := s.version.Add(1)

	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// lockAll takes every shard lock in ascending index order.
func (s *InMemoryStore) lockAll() {
	for i := 0; i < s.shardCount; i++ {
		s.shards[i].mu.Lock()
	}
}

func (s *InMemoryStore) unlockAll() {
	for i := s.shardCount - 1; i >= 0; i-- {
		s.shards[i].mu.Unlock()
	}
}
