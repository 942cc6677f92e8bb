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

package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devicewatch/pkg/logger"
)

var errStartFailed = errors.New("start failed")

type fakeService struct {
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
}

func (f *fakeService) Start(ctx context.Context) error {
	f.started.Store(true)

	if f.startErr != nil {
		return f.startErr
	}

	<-ctx.Done()

	return ctx.Err()
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped.Store(true)

	return nil
}

func TestRunServerStopsOnCancel(t *testing.T) {
	svc := &fakeService{}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- RunServer(ctx, &ServerOptions{
			ServiceName: "test",
			Service:     svc,
			Logger:      logger.NewTestLogger(),
		})
	}()

	require.Eventually(t, svc.started.Load, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunServer did not return after cancel")
	}

	assert.True(t, svc.stopped.Load())
}

func TestRunServerServesHTTP(t *testing.T) {
	svc := &fakeService{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	errCh := make(chan error, 1)

	go func() {
		errCh <- RunServer(ctx, &ServerOptions{
			ListenAddr:  "127.0.0.1:0",
			ServiceName: "test",
			Service:     svc,
			Handler:     handler,
		})
	}()

	require.Eventually(t, svc.started.Load, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, svc.stopped.Load())
}

func TestRunServerStartError(t *testing.T) {
	svc := &fakeService{startErr: errStartFailed}

	err := RunServer(context.Background(), &ServerOptions{ServiceName: "test", Service: svc})
	require.ErrorIs(t, err, errStartFailed)
	assert.True(t, svc.stopped.Load(), "a failed start still runs shutdown")
}

func TestRunServerRequiresService(t *testing.T) {
	require.ErrorIs(t, RunServer(context.Background(), &ServerOptions{}), errServiceRequired)
}

func TestCreateComponentLogger(t *testing.T) {
	l, err := CreateComponentLogger("poller", &logger.Config{Level: "info"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = CreateComponentLogger("poller", &logger.Config{Level: "loud"})
	require.Error(t, err)
}
