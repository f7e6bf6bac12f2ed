package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/config"
	"github.com/jonwingfield/reefmon/internal/controller"
	"github.com/jonwingfield/reefmon/internal/datadog"
	"github.com/jonwingfield/reefmon/internal/device"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/logging"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/notifications"
	"github.com/jonwingfield/reefmon/internal/sensors"
	"github.com/jonwingfield/reefmon/internal/store"
	"github.com/jonwingfield/reefmon/internal/telemetry"
	"github.com/jonwingfield/reefmon/system/shutdown"
	"github.com/jonwingfield/reefmon/system/startup"
)

// the loop counts as stalled when the snapshot is older than this
const stallThreshold = 10 * time.Second

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	if cfg.InstallService {
		if err := startup.InstallService(cfg.SystemdUnitPath, cfg.BinaryPath, cfg.ConfigFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to install systemd unit")
		}
		return
	}

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Msg("Starting reef controller")

	pins := gpio.PinsFromConfig(cfg)
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED: GPIO lines are simulated and never driven")
	} else if err := gpio.ValidateStartupPins(pins); err != nil {
		log.Fatal().Err(err).Msg("Refusing to enable relay board due to unsafe pin states")
	}

	registry, err := gpio.Open(cfg.GPIO.Chip, pins, cfg.SafeMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open GPIO lines")
	}
	shutdown.OnShutdown(func() {
		if err := registry.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release GPIO lines")
		}
	})

	bus, err := device.OpenBus(cfg.BusRetries)
	if err != nil {
		shutdown.ShutdownWithError(err, "I2C bus unavailable")
	}
	board := device.NewAVR(bus, cfg.AVRAddress)

	// a typed nil would look like a fitted probe to the sensor service
	var ph sensors.PHProbe
	if cfg.EnablePH {
		ph = device.NewPHProbe(bus, cfg.PHAddress, device.PHConfig{PH7Cal: cfg.PH7Cal, PH10Cal: cfg.PH10Cal})
	}
	svc := sensors.NewService(board, ph)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open settings database")
	}
	shutdown.OnShutdown(func() { st.Close() })

	if err := st.Seed(model.DefaultSettings()); err != nil {
		shutdown.ShutdownWithError(err, "Failed to seed settings")
	}
	settings, err := st.Load()
	if err != nil {
		log.Error().Err(err).Msg("Stored settings are invalid, starting with defaults")
		settings = model.DefaultSettings()
	}

	clock := clockwork.NewRealClock()
	ctrl := controller.New(cfg, clock, registry, svc, board, settings)

	watcher, err := store.NewWatcher(st, ctrl)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to start settings watcher")
	}

	datadog.InitMetrics(cfg)
	shutdown.OnShutdown(datadog.Close)
	notifications.Init(cfg.NtfyTopic)

	var publisher telemetry.Publisher
	if cfg.MQTTBroker != "" {
		mq, err := telemetry.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, cfg.BusRetries)
		if err != nil {
			log.Error().Err(err).Msg("MQTT unavailable, status will not be published")
		} else {
			publisher = mq
			shutdown.OnShutdown(mq.Close)
		}
	}
	reporter := telemetry.NewReporter(ctrl, publisher, notifications.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		interval := time.Duration(cfg.SettingsPollSeconds) * time.Second
		if err := watcher.Run(ctx, clock, interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Settings watcher stopped")
		}
	}()
	go func() {
		interval := time.Duration(cfg.TelemetrySeconds) * time.Second
		if err := reporter.Run(ctx, clock, interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Telemetry stopped")
		}
	}()
	go startup.RunWatchdog(ctx, func() bool {
		return clock.Since(ctrl.Snapshot().UpdatedAt) < stallThreshold
	})

	startup.NotifyReady()
	err = ctrl.Run(ctx)
	startup.NotifyStopping()

	if err != nil && !errors.Is(err, context.Canceled) {
		shutdown.ShutdownWithError(err, "Controller loop failed")
	}
	shutdown.Shutdown()
}
