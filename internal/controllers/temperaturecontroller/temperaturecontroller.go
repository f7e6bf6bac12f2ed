package temperaturecontroller

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/equipment"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/timeofday"
	"github.com/jonwingfield/reefmon/internal/units"
)

const (
	// MaxHeaterCycle is the longest the heater may run before we assume a
	// stuck probe or a failed heater and lock it out.
	MaxHeaterCycle = 24 * time.Hour
	Lockout        = 10 * time.Minute

	HighTempCeilingF = 84.0
)

type State int

const (
	Idle State = iota
	HeaterOn
	CoolerOn
	TimedOut
)

func (s State) String() string {
	switch s {
	case HeaterOn:
		return "heater_on"
	case CoolerOn:
		return "cooler_on"
	case TimedOut:
		return "timed_out"
	default:
		return "idle"
	}
}

type Controller struct {
	heater *equipment.Relay
	cooler *equipment.Relay

	settings   model.TemperatureSettings
	hysteresis float64

	state State
	since time.Time

	temp    units.Temperature
	hasTemp bool
}

func New(heater, cooler gpio.Pin, settings model.TemperatureSettings, hysteresisF float64) *Controller {
	return &Controller{
		heater:     equipment.NewRelay("heater", heater),
		cooler:     equipment.NewRelay("cooler", cooler),
		settings:   settings,
		hysteresis: hysteresisF,
	}
}

func (c *Controller) SetSettings(s model.TemperatureSettings) {
	c.settings = s
	log.Info().
		Str("heater_min", s.Heater.Min.String()).
		Str("cooler_max", s.Cooler.Max.String()).
		Msg("Temperature settings updated")
}

func (c *Controller) State() State {
	return c.state
}

// Tick runs one pass of the state machine against the smoothed water
// temperature. Without a reading there is nothing to decide.
func (c *Controller) Tick(now time.Time, temp units.Temperature, ok bool) error {
	if !ok {
		return nil
	}
	temp = temp.F()
	c.temp, c.hasTemp = temp, true

	tod := timeofday.FromTime(now)
	low := c.settings.Heater.At(tod).F()
	high := c.settings.Cooler.At(tod).F()

	act := evaluate(c.state, c.since, c.heater.IsOn(), c.cooler.IsOn(), temp, low, high, c.hysteresis, now)
	if act.next == c.state && !act.heaterChange && !act.coolerChange {
		return nil
	}

	var errs []error
	if act.heaterChange {
		errs = append(errs, c.heater.Set(now, act.heaterOn))
	}
	if act.coolerChange {
		errs = append(errs, c.cooler.Set(now, act.coolerOn))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("temperature controller: %w", err)
	}

	if act.next == TimedOut {
		log.Warn().
			Dur("ran", now.Sub(c.since)).
			Str("retry", humanize.Time(now.Add(Lockout))).
			Msg("Heater timed out, locking out")
	}
	if act.next != c.state {
		log.Info().
			Str("from", c.state.String()).
			Str("to", act.next.String()).
			Float64("temp_f", temp.Value).
			Float64("min_f", low.Value).
			Float64("max_f", high.Value).
			Msg("Temperature state change")
	}
	c.state = act.next
	c.since = act.since
	return nil
}

type action struct {
	heaterChange bool
	heaterOn     bool
	coolerChange bool
	coolerOn     bool
	next         State
	since        time.Time
}

func evaluate(
	state State,
	since time.Time,
	heaterOn bool,
	coolerOn bool,
	temp units.Temperature,
	low units.Temperature,
	high units.Temperature,
	hysteresis float64,
	now time.Time,
) action {
	noop := action{next: state, since: since}

	if state == TimedOut {
		if now.Sub(since) < Lockout {
			return noop
		}
		state = Idle
		noop = action{next: Idle, since: now}
	}

	switch {
	case heaterOn && temp.Greater(low.Plus(hysteresis)):
		return action{heaterChange: true, heaterOn: false, next: Idle, since: now}

	case !heaterOn && !coolerOn && temp.Greater(high.Plus(hysteresis)):
		return action{coolerChange: true, coolerOn: true, next: CoolerOn, since: now}

	case coolerOn && temp.Less(high.Plus(-hysteresis)):
		return action{coolerChange: true, coolerOn: false, next: Idle, since: now}

	case !heaterOn && temp.Less(low.Plus(-hysteresis)):
		return action{heaterChange: true, heaterOn: true, next: HeaterOn, since: now}

	case heaterOn && state == HeaterOn && now.Sub(since) > MaxHeaterCycle:
		return action{heaterChange: true, heaterOn: false, next: TimedOut, since: now}
	}

	return noop
}

func (c *Controller) Status() (heaterOn, coolerOn bool) {
	return c.heater.IsOn(), c.cooler.IsOn()
}

func (c *Controller) Alerts(now time.Time) []model.Alert {
	var alerts []model.Alert
	if c.hasTemp && c.temp.Value >= HighTempCeilingF {
		alerts = append(alerts, model.Alert{
			Component: model.ComponentTemperature,
			Kind:      "high_temperature",
			Message:   fmt.Sprintf("temperature is %s", c.temp),
		})
	}
	if c.state == TimedOut {
		until := c.since.Add(Lockout)
		if now.Before(until) {
			alerts = append(alerts, model.Alert{
				Component: model.ComponentTemperature,
				Kind:      "heater_timeout",
				Message:   fmt.Sprintf("heater ran longer than %s and is locked out until %s", MaxHeaterCycle, until.Format("15:04")),
			})
		}
	}
	return alerts
}

// Release drives both relays off. Used at startup to put the hardware in a
// known state and again on shutdown.
func (c *Controller) Release(now time.Time) error {
	return errors.Join(c.heater.TurnOff(now), c.cooler.TurnOff(now))
}
