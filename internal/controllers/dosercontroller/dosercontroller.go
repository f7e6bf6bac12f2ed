package dosercontroller

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/equipment"
	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/timeofday"
)

type Controller struct {
	pump     *equipment.Relay
	settings model.DoserSettings
	lastRun  int64
	ran      bool
}

func New(pin gpio.Pin, settings model.DoserSettings) *Controller {
	return &Controller{
		pump:     equipment.NewRelay("doser", pin),
		settings: settings,
	}
}

func (c *Controller) SetSettings(s model.DoserSettings) {
	c.settings = s
	log.Info().
		Float64("rate_ml_min", s.PumpRateMLMin).
		Int("doses", len(s.Doses)).
		Msg("Doser settings updated")
}

// Duration is how long the pump has to run to deliver amount ml.
func Duration(amountML, rateMLMin float64) time.Duration {
	if rateMLMin <= 0 {
		return 0
	}
	secs := math.Round(amountML / (rateMLMin / 60))
	return time.Duration(secs) * time.Second
}

// Active returns the first dose whose window covers tod. The window includes
// both its start and end second.
func (c *Controller) Active(tod timeofday.TimeOfDay) (model.Dose, bool) {
	if c.settings.PumpRateMLMin <= 0 {
		return model.Dose{}, false
	}
	for _, d := range c.settings.Doses {
		if tod.Since(d.StartTime) <= Duration(d.AmountML, c.settings.PumpRateMLMin) {
			return d, true
		}
	}
	return model.Dose{}, false
}

// Tick runs at most once per wall-clock second.
func (c *Controller) Tick(now time.Time) error {
	sec := now.Unix()
	if c.ran && sec == c.lastRun {
		return nil
	}
	c.ran, c.lastRun = true, sec

	dose, active := c.Active(timeofday.FromTime(now))
	if active && !c.pump.IsOn() {
		log.Info().
			Float64("amount_ml", dose.AmountML).
			Str("start", dose.StartTime.String()).
			Msg("Dosing")
	}
	return c.pump.Set(now, active)
}

func (c *Controller) IsOn() bool {
	return c.pump.IsOn()
}

func (c *Controller) Release(now time.Time) error {
	return c.pump.TurnOff(now)
}
