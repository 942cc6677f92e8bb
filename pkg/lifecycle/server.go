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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devicewatch/pkg/logger"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
)

var errServiceRequired = errors.New("service is required")

// Service is a long-running component. Start blocks until ctx is cancelled or
// Stop is called.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions describes what RunServer runs.
type ServerOptions struct {
	ListenAddr      string
	ServiceName     string
	Service         Service
	Handler         http.Handler
	Logger          logger.Logger
	ShutdownTimeout time.Duration
}

// RunServer starts the service and, when a handler and address are given, an
// HTTP server. It returns after SIGINT/SIGTERM or ctx cancellation once both
// have shut down.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts.Service == nil {
		return errServiceRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	timeout := opts.ShutdownTimeout
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server

	if opts.Handler != nil && opts.ListenAddr != "" {
		srv = &http.Server{
			Addr:         opts.ListenAddr,
			Handler:      opts.Handler,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		}

		g.Go(func() error {
			log.Info().Str("addr", opts.ListenAddr).Str("service", opts.ServiceName).Msg("HTTP server listening")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}

			return nil
		})
	}

	g.Go(func() error {
		if err := opts.Service.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", opts.ServiceName, err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		log.Info().Str("service", opts.ServiceName).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error

		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}

		if err := opts.Service.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s stop: %w", opts.ServiceName, err))
		}

		return errors.Join(errs...)
	})

	return g.Wait()
}
