package lightingcontroller

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/equipment"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/schedule"
	"github.com/jonwingfield/reefmon/internal/timeofday"
)

// DisableFadeMs is how long the lights take to return to the schedule when
// live mode is switched off early.
const DisableFadeMs = 20000

var (
	fugeLightOff = timeofday.New(5, 30, 0)
	fugeLightOn  = timeofday.New(17, 30, 0)
)

// Output receives the per-channel intensities. The tank board implements it.
type Output interface {
	WriteIntensities(schedule.Intensities) error
}

type liveMode struct {
	from      schedule.Intensities
	to        schedule.Intensities
	startTick uint64
	fadeTicks uint64
	endTick   uint64
}

// at returns the live output for tick, fading linearly from the previous
// output to the target.
func (l *liveMode) at(tick uint64) schedule.Intensities {
	if l.fadeTicks == 0 {
		return l.to
	}
	var elapsed uint64
	if tick > l.startTick {
		elapsed = tick - l.startTick
	}
	return schedule.Blend(l.from, l.to, float64(elapsed)/float64(l.fadeTicks))
}

type Controller struct {
	out      Output
	fuge     *equipment.Relay
	schedule schedule.Schedule

	live     *liveMode
	current  schedule.Intensities
	writeErr error
}

func New(out Output, fugeLight gpio.Pin, s schedule.Schedule) *Controller {
	return &Controller{
		out:      out,
		fuge:     equipment.NewRelay("fuge_light", fugeLight),
		schedule: s,
	}
}

func (c *Controller) SetSchedule(s schedule.Schedule) {
	c.schedule = s
	log.Info().Int("legs", len(s.Legs)).Msg("Lighting schedule updated")
}

// LiveMode overrides the schedule with req.Leg starting at tick, fading from
// what the schedule calls for at now. Asking again while live mode is running
// never shortens it.
func (c *Controller) LiveMode(req model.LiveRequest, now time.Time, tick uint64) {
	end := tick + req.DurationMs
	if c.live != nil && c.live.endTick > end {
		end = c.live.endTick
	}
	c.live = &liveMode{
		from:      c.schedule.IntensityAt(timeofday.FromTime(now)),
		to:        req.Leg.Weighted(),
		startTick: tick,
		fadeTicks: req.FadeTicks(),
		endTick:   end,
	}
	log.Info().
		Uint64("fade_ms", c.live.fadeTicks).
		Uint64("ends_in_ms", end-tick).
		Msg("Live mode on")
}

// DisableLiveMode fades back to the schedule instead of jumping to it.
func (c *Controller) DisableLiveMode(now time.Time, tick uint64) {
	if !c.LiveActive(tick) {
		return
	}
	c.live = &liveMode{
		from:      c.current,
		to:        c.schedule.IntensityAt(timeofday.FromTime(now)),
		startTick: tick,
		fadeTicks: DisableFadeMs,
		endTick:   tick + DisableFadeMs,
	}
	log.Info().Msg("Live mode disabled, fading back to schedule")
}

func (c *Controller) LiveActive(tick uint64) bool {
	return c.live != nil && tick < c.live.endTick
}

func (c *Controller) Tick(now time.Time, tick uint64) error {
	tod := timeofday.FromTime(now)

	var target schedule.Intensities
	if c.LiveActive(tick) {
		target = c.live.at(tick)
	} else {
		if c.live != nil {
			log.Info().Msg("Live mode ended")
			c.live = nil
		}
		target = c.schedule.IntensityAt(tod)
	}

	var errs []error
	if err := c.out.WriteIntensities(target); err != nil {
		c.writeErr = err
		errs = append(errs, fmt.Errorf("write intensities: %w", err))
	} else {
		if c.writeErr != nil {
			log.Info().Msg("Lighting writes recovered")
		}
		c.writeErr = nil
		c.current = target
	}

	if err := c.fuge.Set(now, fugeLightWanted(tod)); err != nil {
		errs = append(errs, fmt.Errorf("fuge light: %w", err))
	}
	return errors.Join(errs...)
}

func fugeLightWanted(tod timeofday.TimeOfDay) bool {
	return tod > fugeLightOn || tod < fugeLightOff
}

// Intensities returns the last output the board accepted.
func (c *Controller) Intensities() schedule.Intensities {
	return c.current
}

func (c *Controller) FugeLightOn() bool {
	return c.fuge.IsOn()
}

func (c *Controller) Alerts() []model.Alert {
	if c.writeErr == nil {
		return nil
	}
	return []model.Alert{{
		Component: model.ComponentLighting,
		Kind:      "write_failed",
		Message:   fmt.Sprintf("failed to set light intensities: %v", c.writeErr),
	}}
}

func (c *Controller) Release(now time.Time) error {
	return c.fuge.TurnOff(now)
}
