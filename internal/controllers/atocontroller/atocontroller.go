package atocontroller

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/equipment"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/smoothing"
	"github.com/jonwingfield/reefmon/internal/units"
)

const (
	TimeoutLockout = 2 * time.Hour
	SuspendFor     = 5 * time.Minute

	// readings this far under the low mark are a water change or a bad sensor
	FarBelowMargin units.Depth = 20
	// a drop this large from the recent max is waves or a pump restart
	QuickDropMargin units.Depth = 20

	recentSampleEvery = 4
)

type State int

const (
	Idle State = iota
	Pumping
	TimedOut
	FailedSafe
)

func (s State) String() string {
	switch s {
	case Pumping:
		return "pumping"
	case TimedOut:
		return "timed_out"
	case FailedSafe:
		return "failed_safe"
	default:
		return "idle"
	}
}

type mark struct {
	at    time.Time
	depth units.Depth
	ok    bool
}

// Controller keeps the sump topped off. It also owns the return pump so it
// can stop circulation while the water level is implausibly low.
type Controller struct {
	ato  *equipment.Relay
	pump *equipment.Relay

	settings model.DepthSettings

	state          State
	since          time.Time
	suspendedUntil time.Time
	lastHigh       mark
	recent         *smoothing.RunningMax[units.Depth]
	samples        int

	failReason string
}

func New(ato, returnPump gpio.Pin, settings model.DepthSettings) *Controller {
	return &Controller{
		ato:      equipment.NewRelay("ato_pump", ato),
		pump:     equipment.NewRelay("return_pump", returnPump),
		settings: settings,
		recent:   smoothing.NewRunningMax[units.Depth](),
	}
}

// SetSettings replaces the thresholds and re-arms the controller after a
// failsafe or timeout.
func (c *Controller) SetSettings(s model.DepthSettings) {
	c.settings = s
	if c.state == FailedSafe || c.state == TimedOut {
		log.Info().Str("from", c.state.String()).Msg("ATO re-armed by settings update")
		c.state = Idle
		c.since = time.Time{}
		c.lastHigh = mark{}
		c.failReason = ""
	}
	log.Info().
		Uint16("low", uint16(s.Low)).
		Uint16("high", uint16(s.High)).
		Msg("Depth settings updated")
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Tick(now time.Time, depth units.Depth, ok bool) error {
	if !ok {
		return nil
	}
	if c.samples%recentSampleEvery == 0 {
		c.recent.Push(depth)
	}
	c.samples++

	if c.state == FailedSafe {
		return nil
	}
	if c.state == TimedOut {
		if now.Sub(c.since) < TimeoutLockout {
			return nil
		}
		log.Info().Msg("ATO timeout lockout expired")
		c.state = Idle
	}

	low, high := c.settings.Low, c.settings.High
	farBelow := low > FarBelowMargin && depth < low-FarBelowMargin

	if !c.suspendedUntil.IsZero() && !now.Before(c.suspendedUntil) && !farBelow {
		if err := c.pump.TurnOn(now); err != nil {
			return fmt.Errorf("resume return pump: %w", err)
		}
		log.Info().Uint16("depth", uint16(depth)).Msg("Return pump resumed")
		c.suspendedUntil = time.Time{}
	}

	if farBelow {
		return c.suspend(now, depth)
	}

	switch {
	case depth < low && c.state != Pumping:
		return c.startFill(now, depth)

	case depth >= high:
		if c.state == Pumping {
			if err := c.ato.TurnOff(now); err != nil {
				return fmt.Errorf("stop ato pump: %w", err)
			}
			log.Info().
				Uint16("depth", uint16(depth)).
				Dur("ran", now.Sub(c.since)).
				Msg("ATO reached high mark")
		}
		c.state = Idle
		c.lastHigh = mark{at: now, depth: depth, ok: true}

	case c.state == Pumping && now.Sub(c.since) > c.maxRunTime():
		if err := c.ato.TurnOff(now); err != nil {
			return fmt.Errorf("stop ato pump: %w", err)
		}
		log.Warn().
			Uint16("depth", uint16(depth)).
			Dur("limit", c.maxRunTime()).
			Str("retry", humanize.Time(now.Add(TimeoutLockout))).
			Msg("ATO ran too long without reaching high mark")
		c.state = TimedOut
		c.since = now
		c.lastHigh = mark{at: now, depth: depth, ok: true}
	}
	return nil
}

func (c *Controller) maxRunTime() time.Duration {
	secs := c.settings.Calibration.RunTimeSeconds(c.settings.Low, c.settings.High)
	return time.Duration(secs) * time.Second
}

func (c *Controller) suspend(now time.Time, depth units.Depth) error {
	errs := []error{c.ato.TurnOff(now), c.pump.TurnOff(now)}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("suspend pumps: %w", err)
	}
	if c.suspendedUntil.IsZero() {
		log.Warn().
			Uint16("depth", uint16(depth)).
			Uint16("low", uint16(c.settings.Low)).
			Msg("Depth far below low mark, suspending pumps")
	}
	if c.state == Pumping {
		c.state = Idle
	}
	c.suspendedUntil = now.Add(SuspendFor)
	return nil
}

func (c *Controller) startFill(now time.Time, depth units.Depth) error {
	if c.lastHigh.ok {
		hours := now.Sub(c.lastHigh.at).Hours()
		if hours > 0 && c.lastHigh.depth > depth {
			rate := float64(c.lastHigh.depth-depth) / hours
			limit := c.settings.Calibration.MaxEvapPerHour()
			if rate > float64(limit) {
				if err := c.ato.TurnOff(now); err != nil {
					return fmt.Errorf("stop ato pump: %w", err)
				}
				c.state = FailedSafe
				c.failReason = fmt.Sprintf("water dropped %.1f units/h since %s, limit is %d/h",
					rate, humanize.Time(c.lastHigh.at), limit)
				log.Error().
					Float64("rate", rate).
					Uint16("limit", uint16(limit)).
					Uint16("depth", uint16(depth)).
					Msg("Evaporation rate too high, ATO failed safe")
				return nil
			}
		}
	}

	if c.recent.Ready() {
		if top := c.recent.Value(); top > depth && top-depth > QuickDropMargin {
			log.Debug().
				Uint16("recent_max", uint16(top)).
				Uint16("depth", uint16(depth)).
				Msg("Quick depth drop, waiting before filling")
			return nil
		}
	}

	if err := c.ato.TurnOn(now); err != nil {
		return fmt.Errorf("start ato pump: %w", err)
	}
	c.state = Pumping
	c.since = now
	log.Info().Uint16("depth", uint16(depth)).Uint16("low", uint16(c.settings.Low)).Msg("ATO filling")
	return nil
}

// Status reports whether the ATO pump and the return pump are energized.
func (c *Controller) Status() (atoOn, pumpOn bool) {
	return c.ato.IsOn(), c.pump.IsOn()
}

func (c *Controller) Alerts(now time.Time) []model.Alert {
	var alerts []model.Alert
	add := func(kind, msg string) {
		alerts = append(alerts, model.Alert{Component: model.ComponentAto, Kind: kind, Message: msg})
	}

	switch c.state {
	case FailedSafe:
		add("failed_safe", "failed safe: "+c.failReason+"; re-apply depth settings to re-arm")
	case TimedOut:
		until := c.since.Add(TimeoutLockout)
		if now.Before(until) {
			add("timeout", fmt.Sprintf("pump timed out before reaching the high mark, retrying at %s", until.Format("15:04")))
		}
	}
	if !c.suspendedUntil.IsZero() {
		add("suspended", fmt.Sprintf("depth is far below low mark %d, return pump suspended", c.settings.Low))
	}
	return alerts
}

// Release stops the ATO pump and leaves the return pump running.
func (c *Controller) Release(now time.Time) error {
	return errors.Join(c.ato.TurnOff(now), c.pump.TurnOn(now))
}
