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
	"sync"

	"github.com/carverauto/devicewatch/pkg/models"
)

// Source is a versioned device collection.
type Source interface {
	All() []models.Device
	Version() uint64
}

// Cache memoizes the aggregate views of a Source, recomputing them only when
// the source version changes.
type Cache struct {
	src Source

	mu          sync.Mutex
	valid       bool
	version     uint64
	departments []string
	summary     Summary
	charts      Charts
}

func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Departments returns the memoized department list. Callers must not modify it.
func (c *Cache) Departments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked()

	return c.departments
}

func (c *Cache) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked()

	return c.summary
}

// Charts returns the memoized chart aggregates. Callers must not modify them.
func (c *Cache) Charts() Charts {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked()

	return c.charts
}

func (c *Cache) refreshLocked() {
	// read the version first so a concurrent write forces the next refresh
	v := c.src.Version()
	if c.valid && v == c.version {
		return
	}

	snapshot := c.src.All()

	c.departments = Departments(snapshot)
	c.summary = Summarize(snapshot)
	c.charts = ChartAggregates(snapshot)
	c.version = v
	c.valid = true
}
