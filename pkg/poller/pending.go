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

package poller

import "context"

// Pending tracks the settlement of a dispatched ping. A ping that was
// deduplicated is returned already done with Dispatched reporting false.
type Pending struct {
	done       chan struct{}
	dispatched bool
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{}), dispatched: true}
}

func skippedPending() *Pending {
	p := &Pending{done: make(chan struct{})}
	close(p.done)

	return p
}

// Done is closed once every probe behind this ping has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Dispatched reports whether any probe was started.
func (p *Pending) Dispatched() bool {
	return p.dispatched
}

// Wait blocks until settlement or until ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
