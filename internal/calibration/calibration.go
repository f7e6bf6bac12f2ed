package calibration

import (
	"fmt"

	"github.com/jonwingfield/reefmon/internal/units"
)

const (
	cubicInchesPerGallon = 231.0

	// MaxEvapGPH is the most water the tank can plausibly lose to evaporation
	// in an hour.
	MaxEvapGPH = 0.5
)

// Calibration ties raw depth readings to tank geometry and the ATO pump flow.
type Calibration struct {
	Low             units.Depth `json:"low"`
	High            units.Depth `json:"high"`
	HighInches      float64     `json:"high_inches"`
	TankSurfaceArea float64     `json:"tank_surface_area"` // in²
	PumpGPH         float64     `json:"pump_gph"`
	TankVolume      float64     `json:"tank_volume"`
}

func (c Calibration) Validate() error {
	if c.High <= c.Low {
		return fmt.Errorf("calibration high (%d) must be above low (%d)", c.High, c.Low)
	}
	if c.HighInches <= 0 {
		return fmt.Errorf("calibration high_inches must be positive, got %v", c.HighInches)
	}
	if c.TankSurfaceArea <= 0 {
		return fmt.Errorf("calibration tank_surface_area must be positive, got %v", c.TankSurfaceArea)
	}
	if c.PumpGPH <= 0 {
		return fmt.Errorf("calibration pump_gph must be positive, got %v", c.PumpGPH)
	}
	return nil
}

func (c Calibration) stepsPerInch() float64 {
	return float64(c.High-c.Low) / c.HighInches
}

func (c Calibration) gallonsPerInch() float64 {
	return c.TankSurfaceArea / cubicInchesPerGallon
}

// RunTimeSeconds estimates how long the pump must run to raise the water
// from low to high.
func (c Calibration) RunTimeSeconds(low, high units.Depth) uint64 {
	riseInches := (float64(high) - float64(low)) / c.stepsPerInch()
	gallons := riseInches * c.gallonsPerInch()
	pumpGalPerSec := c.PumpGPH / 3600.0
	return uint64(gallons / pumpGalPerSec)
}

// MaxEvapPerHour is the evaporation failsafe threshold in sensor units per
// hour.
// TODO: the units here don't line up with RunTimeSeconds; needs review
// before anyone retunes MaxEvapGPH.
func (c Calibration) MaxEvapPerHour() units.Depth {
	return units.Depth(c.stepsPerInch() / c.gallonsPerInch() * MaxEvapGPH)
}
