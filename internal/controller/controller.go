package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/config"
	"github.com/jonwingfield/reefmon/internal/controllers/atocontroller"
	"github.com/jonwingfield/reefmon/internal/controllers/dosercontroller"
	"github.com/jonwingfield/reefmon/internal/controllers/lightingcontroller"
	"github.com/jonwingfield/reefmon/internal/controllers/temperaturecontroller"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/sensors"
)

const commandBuffer = 16

// AquariumController owns every piece of tank equipment and runs them all
// from a single loop. Settings changes arrive through Submit and are applied
// between ticks; everyone else reads the tank through Snapshot.
type AquariumController struct {
	clock   clockwork.Clock
	tickMs  uint64
	cadence config.Cadence

	sensors     *sensors.Service
	temperature *temperaturecontroller.Controller
	ato         *atocontroller.Controller
	doser       *dosercontroller.Controller
	lighting    *lightingcontroller.Controller

	commands chan model.Command
	ticks    uint64

	mu     sync.RWMutex
	status model.Status
}

// New claims every equipment pin from the registry. A pin that is missing or
// already claimed is a wiring bug and panics.
func New(
	cfg config.Config,
	clock clockwork.Clock,
	pins *gpio.Registry,
	svc *sensors.Service,
	lights lightingcontroller.Output,
	settings model.Settings,
) *AquariumController {
	return &AquariumController{
		clock:   clock,
		tickMs:  uint64(cfg.TickMillis),
		cadence: cfg.Cadence,
		sensors: svc,
		temperature: temperaturecontroller.New(
			pins.MustClaim(gpio.Heater),
			pins.MustClaim(gpio.Cooler),
			settings.Temperature,
			cfg.HysteresisF,
		),
		ato: atocontroller.New(
			pins.MustClaim(gpio.ATO),
			pins.MustClaim(gpio.ReturnPump),
			settings.Depth,
		),
		doser:    dosercontroller.New(pins.MustClaim(gpio.Doser), settings.Doser),
		lighting: lightingcontroller.New(lights, pins.MustClaim(gpio.FugeLight), settings.Lighting),
		commands: make(chan model.Command, commandBuffer),
	}
}

// Submit queues a settings change for the next tick.
func (c *AquariumController) Submit(ctx context.Context, cmd model.Command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the status published by the last tick.
func (c *AquariumController) Snapshot() model.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Clone()
}

// Run drives the tick loop until ctx is cancelled, then puts the equipment
// back in its resting state.
func (c *AquariumController) Run(ctx context.Context) error {
	if err := c.release(); err != nil {
		log.Error().Err(err).Msg("Failed to put equipment in a known state at startup")
	}

	log.Info().
		Uint64("tick_ms", c.tickMs).
		Int("lighting_ms", c.cadence.LightingMs).
		Int("ato_ms", c.cadence.ATOMs).
		Msg("Starting aquarium controller")

	ticker := c.clock.NewTicker(time.Duration(c.tickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping aquarium controller")
			if err := c.release(); err != nil {
				log.Error().Err(err).Msg("Failed to release equipment")
			}
			return ctx.Err()
		case <-ticker.Chan():
			c.Tick()
		}
	}
}

func (c *AquariumController) release() error {
	now := c.clock.Now()
	return errors.Join(
		c.temperature.Release(now),
		c.ato.Release(now),
		c.doser.Release(now),
		c.lighting.Release(now),
	)
}

func (c *AquariumController) due(cadenceMs int, elapsed uint64) bool {
	return cadenceMs > 0 && elapsed%uint64(cadenceMs) == 0
}

// Tick runs one pass of the loop. It is exported so tests can step the loop
// without a clock.
func (c *AquariumController) Tick() error {
	now := c.clock.Now()
	elapsed := c.ticks * c.tickMs
	c.ticks++

	c.drainCommands(now, elapsed)

	var errs []error
	if c.due(c.cadence.TemperatureSensorMs, elapsed) {
		errs = append(errs, c.sensors.PollTemperatures(now))
	}
	if c.due(c.cadence.DepthSensorMs, elapsed) {
		errs = append(errs, c.sensors.PollDepth(now))
	}
	if c.due(c.cadence.PHSensorMs, elapsed) {
		errs = append(errs, c.sensors.PollPH(now))
	}

	if c.lighting.LiveActive(elapsed) || c.due(c.cadence.LightingMs, elapsed) {
		errs = append(errs, c.lighting.Tick(now, elapsed))
	}
	if c.due(c.cadence.TemperatureMs, elapsed) {
		temp, ok := c.sensors.WaterTemperature()
		errs = append(errs, c.temperature.Tick(now, temp, ok))
	}
	if c.due(c.cadence.ATOMs, elapsed) {
		depth, ok := c.sensors.Depth()
		errs = append(errs, c.ato.Tick(now, depth, ok))
	}
	if c.due(c.cadence.DoserMs, elapsed) {
		errs = append(errs, c.doser.Tick(now))
	}

	c.publish(now, elapsed)

	err := errors.Join(errs...)
	if err != nil {
		log.Error().Err(err).Uint64("elapsed_ms", elapsed).Msg("Tick failed")
	}
	return err
}

func (c *AquariumController) drainCommands(now time.Time, elapsed uint64) {
	for {
		select {
		case cmd := <-c.commands:
			if err := c.apply(cmd, now, elapsed); err != nil {
				log.Error().Err(err).Msg("Rejected settings command")
			}
		default:
			return
		}
	}
}

// apply validates every section before touching any controller, so a bad
// command changes nothing.
func (c *AquariumController) apply(cmd model.Command, now time.Time, elapsed uint64) error {
	if cmd.Depth != nil {
		if err := cmd.Depth.Validate(); err != nil {
			return fmt.Errorf("depth settings: %w", err)
		}
	}
	if cmd.Lighting != nil {
		if err := cmd.Lighting.Validate(); err != nil {
			return fmt.Errorf("lighting schedule: %w", err)
		}
	}
	if cmd.Doser != nil {
		if err := cmd.Doser.Validate(); err != nil {
			return fmt.Errorf("doser settings: %w", err)
		}
	}

	if cmd.Temperature != nil {
		c.temperature.SetSettings(*cmd.Temperature)
	}
	if cmd.Depth != nil {
		c.ato.SetSettings(*cmd.Depth)
	}
	if cmd.Lighting != nil {
		c.lighting.SetSchedule(*cmd.Lighting)
	}
	if cmd.Doser != nil {
		c.doser.SetSettings(*cmd.Doser)
	}
	if cmd.Live != nil {
		c.lighting.LiveMode(*cmd.Live, now, elapsed)
	}
	if cmd.DisableLive {
		c.lighting.DisableLiveMode(now, elapsed)
	}
	return nil
}

func (c *AquariumController) publish(now time.Time, elapsed uint64) {
	var s model.Status
	s.HeaterOn, s.CoolerOn = c.temperature.Status()
	s.AtoPumpOn, s.PumpOn = c.ato.Status()
	s.DoserOn = c.doser.IsOn()
	s.FugeLightOn = c.lighting.FugeLightOn()
	s.LiveMode = c.lighting.LiveActive(elapsed)
	s.Intensities = c.lighting.Intensities()

	if t, ok := c.sensors.WaterTemperature(); ok {
		s.WaterTempF = &t.Value
	}
	if t, ok := c.sensors.AirTemperature(); ok {
		s.AirTempF = &t.Value
	}
	if h, ok := c.sensors.Humidity(); ok {
		s.Humidity = &h
	}
	if d, ok := c.sensors.Depth(); ok {
		s.Depth = &d
	}
	if ph, ok := c.sensors.PH(); ok {
		s.PH = &ph
	}

	s.Alerts = append(s.Alerts, c.temperature.Alerts(now)...)
	s.Alerts = append(s.Alerts, c.ato.Alerts(now)...)
	s.Alerts = append(s.Alerts, c.lighting.Alerts()...)
	s.UpdatedAt = now

	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}
