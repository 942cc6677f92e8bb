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

package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicewatch/pkg/models"
)

func TestAppendNewestFirst(t *testing.T) {
	base := time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC)
	tick := 0

	l := New(WithClock(func() time.Time {
		tick++

		return base.Add(time.Duration(tick) * time.Second)
	}))

	first := l.Append("first", models.SeverityInfo)
	second := l.Append("second", models.SeveritySuccess)

	recent := l.Recent()
	require.Len(t, recent, 2)

	assert.Equal(t, second, recent[0])
	assert.Equal(t, first, recent[1])
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, base.Add(2*time.Second), recent[0].Timestamp)
}

func TestCapacityEvictsOldest(t *testing.T) {
	l := New()
	require.Equal(t, DefaultCapacity, l.Capacity())

	for i := 0; i < DefaultCapacity+25; i++ {
		l.Append(fmt.Sprintf("entry %d", i), models.SeverityInfo)
		assert.LessOrEqual(t, l.Len(), DefaultCapacity)
	}

	recent := l.Recent()
	require.Len(t, recent, DefaultCapacity)

	assert.Equal(t, fmt.Sprintf("entry %d", DefaultCapacity+24), recent[0].Message)
	assert.Equal(t, "entry 25", recent[DefaultCapacity-1].Message)
}

func TestWithCapacity(t *testing.T) {
	l := New(WithCapacity(3), WithCapacity(0))

	for i := 0; i < 5; i++ {
		l.Append(fmt.Sprintf("%d", i), models.SeverityError)
	}

	recent := l.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"4", "3", "2"}, []string{recent[0].Message, recent[1].Message, recent[2].Message})
}

func TestRecentIsACopy(t *testing.T) {
	l := New()
	l.Append("original", models.SeverityInfo)

	recent := l.Recent()
	recent[0].Message = "mutated"

	assert.Equal(t, "original", l.Recent()[0].Message)
}

func TestConcurrentAppend(t *testing.T) {
	l := New()

	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			l.Append("concurrent", models.SeverityInfo)
		}()
	}

	wg.Wait()

	assert.Equal(t, DefaultCapacity, l.Len())
}

func TestSubscribe(t *testing.T) {
	l := New()

	ch := make(chan models.EventLogEntry, 1)
	l.Subscribe(ch)

	entry := l.Append("hello", models.SeveritySuccess)

	select {
	case got := <-ch:
		assert.Equal(t, entry, got)
	case <-time.After(time.Second):
		t.Fatal("expected entry on subscriber channel")
	}

	// full channel: Append must not block
	l.Append("one", models.SeverityInfo)
	l.Append("two", models.SeverityInfo)
	assert.Equal(t, 3, l.Len())
}

func TestUnsubscribe(t *testing.T) {
	l := New()

	kept := make(chan models.EventLogEntry, 4)
	dropped := make(chan models.EventLogEntry, 4)

	l.Subscribe(kept)
	l.Subscribe(dropped)
	l.Unsubscribe(dropped)

	l.Append("after", models.SeverityInfo)

	assert.Len(t, kept, 1)
	assert.Empty(t, dropped)
}

func TestSubscriberOrderMatchesRecent(t *testing.T) {
	l := New()

	const writers, perWriter = 8, 5

	ch := make(chan models.EventLogEntry, writers*perWriter)
	l.Subscribe(ch)

	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := 0; i < perWriter; i++ {
				l.Append(fmt.Sprintf("writer %d entry %d", w, i), models.SeverityInfo)
			}
		}(w)
	}

	wg.Wait()

	recent := l.Recent()
	require.Len(t, recent, writers*perWriter)
	require.Len(t, ch, writers*perWriter)

	// Recent is newest first, the channel oldest first.
	for i := len(recent) - 1; i >= 0; i-- {
		got := <-ch
		assert.Equal(t, recent[i].ID, got.ID, "delivery %d out of order", len(recent)-1-i)
	}
}
