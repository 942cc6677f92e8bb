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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/carverauto/devicewatch/pkg/api"
	"github.com/carverauto/devicewatch/pkg/config"
	"github.com/carverauto/devicewatch/pkg/eventlog"
	"github.com/carverauto/devicewatch/pkg/lifecycle"
	"github.com/carverauto/devicewatch/pkg/logger"
	"github.com/carverauto/devicewatch/pkg/models"
	"github.com/carverauto/devicewatch/pkg/natsutil"
	"github.com/carverauto/devicewatch/pkg/poller"
	"github.com/carverauto/devicewatch/pkg/probe"
	"github.com/carverauto/devicewatch/pkg/registry"
	"github.com/carverauto/devicewatch/pkg/store"
	"github.com/carverauto/devicewatch/pkg/version"
)

const eventBuffer = 256

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/devicewatch/devicewatch.json", "Path to devicewatch config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg poller.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger("devicewatch", logConfig)
	if err != nil {
		return err
	}

	mainLogger.Info().Str("version", version.Get().String()).Msg("Starting devicewatch")

	component := func(name string) logger.Logger {
		l, err := lifecycle.CreateComponentLogger(name, logConfig)
		if err != nil {
			return mainLogger
		}

		return l
	}

	defer shutdownTelemetry(mainLogger)

	if cfg.Metrics != nil {
		startMetrics(ctx, &cfg, mainLogger)
	}

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.Get().Version,
		Logger:         mainLogger,
		OTel:           logConfig.OTel,
	}); err != nil {
		mainLogger.Warn().Err(err).Msg("Tracing exporter not started")
	}

	deviceStore := store.NewInMemoryStore(component("store"))
	events := eventlog.New(eventlog.WithCapacity(cfg.EventLogCapacity))

	reg := registry.NewDeviceRegistry(deviceStore, component("registry"))
	if err := seedInventory(reg, cfg.InventoryFile, mainLogger); err != nil {
		return err
	}

	prober, err := probe.NewSimulatedProber(cfg.Simulation, component("probe"))
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}

	p, err := poller.New(&cfg, deviceStore, events, prober, component("poller"))
	if err != nil {
		return err
	}

	if cfg.NATS != nil {
		stopPublisher, err := startPublisher(ctx, cfg.NATS, events, component("natsutil"))
		if err != nil {
			return err
		}

		defer stopPublisher()
	}

	server := api.NewAPIServer(deviceStore, component("api"),
		api.WithPinger(p),
		api.WithRegistrar(reg),
		api.WithEventReader(events),
		api.WithEventStream(events),
		api.WithAllowedOrigins(cfg.AllowedOrigins...),
	)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: cfg.ServiceName,
		Service:     p,
		Handler:     server,
		Logger:      mainLogger,
	})
}

func seedInventory(reg *registry.DeviceRegistry, path string, log logger.Logger) error {
	devices := registry.DefaultInventory()

	if path != "" {
		loaded, err := registry.LoadInventory(path)
		if err != nil {
			return err
		}

		devices = loaded
	}

	if err := reg.Seed(devices); err != nil {
		return err
	}

	log.Info().Int("devices", len(devices)).Str("inventory", path).Msg("Seeded device inventory")

	return nil
}

// startPublisher forwards every event log entry to JetStream. The returned
// func stops forwarding and closes the connection.
func startPublisher(
	ctx context.Context, cfg *models.NATSConfig, events *eventlog.Log, log logger.Logger,
) (func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	publisher, nc, err := natsutil.Connect(connectCtx, cfg, log)
	if err != nil {
		return nil, err
	}

	entries := make(chan models.EventLogEntry, eventBuffer)
	events.Subscribe(entries)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := publisher.Run(runCtx, entries); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Event publisher stopped")
		}
	}()

	return func() {
		stop()
		<-done
		nc.Close()
	}, nil
}

// startMetrics installs the OTLP metrics pipeline. A misconfigured exporter is
// logged and the service runs without it.
func startMetrics(ctx context.Context, cfg *poller.Config, log logger.Logger) {
	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.Get().Version,
		OTel:           cfg.Metrics,
	})
	if err != nil {
		if !errors.Is(err, logger.ErrOTelMetricsDisabled) {
			log.Warn().Err(err).Msg("Metrics exporter not started")
		}

		return
	}

	log.Info().Str("endpoint", cfg.Metrics.Endpoint).Msg("Exporting metrics")
}

// shutdownTelemetry flushes whichever of the log, trace and metric pipelines
// were started.
func shutdownTelemetry(log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := logger.ShutdownOTEL(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}
