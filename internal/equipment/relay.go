package equipment

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/gpio"
)

// Relay tracks the commanded state of a pin so controllers only touch the
// hardware when the state actually changes.
type Relay struct {
	Name        string
	LastChanged time.Time

	pin   gpio.Pin
	isOn  bool
	known bool
}

func NewRelay(name string, pin gpio.Pin) *Relay {
	return &Relay{Name: name, pin: pin}
}

func (r *Relay) IsOn() bool {
	return r.isOn
}

// OnFor reports how long the relay has been energized, or zero if it is off.
func (r *Relay) OnFor(now time.Time) time.Duration {
	if !r.isOn {
		return 0
	}
	return now.Sub(r.LastChanged)
}

func (r *Relay) TurnOn(now time.Time) error {
	return r.Set(now, true)
}

func (r *Relay) TurnOff(now time.Time) error {
	return r.Set(now, false)
}

// Set drives the pin unless it is already known to be in the requested state.
// On error the tracked state is left alone so the next tick retries.
func (r *Relay) Set(now time.Time, on bool) error {
	if r.known && r.isOn == on {
		return nil
	}
	if err := r.pin.Set(on); err != nil {
		return err
	}
	r.isOn = on
	r.known = true
	r.LastChanged = now

	if on {
		log.Info().Str("device", r.Name).Msg("Turned ON")
	} else {
		log.Info().Str("device", r.Name).Msg("Turned OFF")
	}
	return nil
}
