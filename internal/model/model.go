package model

import (
	"fmt"
	"time"

	"github.com/jonwingfield/reefmon/internal/calibration"
	"github.com/jonwingfield/reefmon/internal/schedule"
	"github.com/jonwingfield/reefmon/internal/timeofday"
	"github.com/jonwingfield/reefmon/internal/units"
)

type TemperatureSettings struct {
	Heater schedule.TemperatureRange `json:"heater"`
	Cooler schedule.TemperatureRange `json:"cooler"`
}

type DepthSettings struct {
	Low         units.Depth             `json:"low"`
	High        units.Depth             `json:"high"`
	Calibration calibration.Calibration `json:"calibration"`
}

func (d DepthSettings) Validate() error {
	if d.High <= d.Low {
		return fmt.Errorf("depth high (%d) must be above low (%d)", d.High, d.Low)
	}
	return d.Calibration.Validate()
}

type Dose struct {
	AmountML  float64             `json:"amount_ml"`
	StartTime timeofday.TimeOfDay `json:"start_time"`
}

type DoserSettings struct {
	PumpRateMLMin float64 `json:"pump_rate_ml_min"`
	Doses         []Dose  `json:"doses"`
}

func (d DoserSettings) Validate() error {
	for i, dose := range d.Doses {
		if dose.AmountML < 0 {
			return fmt.Errorf("dose %d has a negative amount", i)
		}
	}
	return nil
}

type Settings struct {
	Temperature TemperatureSettings `json:"temperature"`
	Depth       DepthSettings       `json:"depth"`
	Lighting    schedule.Schedule   `json:"lighting"`
	Doser       DoserSettings       `json:"doser"`
}

// DefaultSettings is what a fresh install runs with until it is configured.
func DefaultSettings() Settings {
	return Settings{
		Temperature: TemperatureSettings{
			Heater: schedule.Constant(units.F(79.5)),
			Cooler: schedule.Constant(units.F(80.5)),
		},
		Depth: DepthSettings{
			Low:  0,
			High: 255,
			Calibration: calibration.Calibration{
				Low:             0,
				High:            255,
				HighInches:      10.0,
				TankSurfaceArea: 170,
				PumpGPH:         50,
			},
		},
		Lighting: schedule.Schedule{Legs: []schedule.Leg{
			{StartTime: timeofday.New(9, 0, 0)},
			{StartTime: timeofday.New(17, 0, 0)},
		}},
	}
}

const (
	FadeSlow = "slow"
	FadeFast = "fast"
)

// LiveRequest temporarily overrides the lighting schedule with Leg.
type LiveRequest struct {
	Leg        schedule.Leg `json:"leg"`
	Fade       string       `json:"fade,omitempty"`
	FadeMs     uint64       `json:"fade_ms,omitempty"`
	DurationMs uint64       `json:"duration_ms"`
}

// FadeTicks resolves the fade preset, falling back to FadeMs.
func (r LiveRequest) FadeTicks() uint64 {
	switch r.Fade {
	case FadeSlow:
		return 20000
	case FadeFast:
		return 2000
	default:
		return r.FadeMs
	}
}

// Command is one settings mutation. Every non-nil section is applied, in
// one step, between two ticks.
type Command struct {
	Temperature *TemperatureSettings `json:"temperature,omitempty"`
	Depth       *DepthSettings       `json:"depth,omitempty"`
	Lighting    *schedule.Schedule   `json:"lighting,omitempty"`
	Doser       *DoserSettings       `json:"doser,omitempty"`
	Live        *LiveRequest         `json:"live,omitempty"`
	DisableLive bool                 `json:"disable_live,omitempty"`
}

type Component string

const (
	ComponentTemperature Component = "Temperature"
	ComponentAto         Component = "Ato"
	ComponentLighting    Component = "Lighting"
)

// Alert is a condition that needs a human. Kind stays the same for as long
// as the condition lasts, while Message may carry the latest readings.
type Alert struct {
	Component Component `json:"component"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

func (a Alert) String() string {
	return string(a.Component) + ": " + a.Message
}

// Status is the snapshot published after every tick.
type Status struct {
	HeaterOn    bool                 `json:"heater_on"`
	CoolerOn    bool                 `json:"cooler_on"`
	AtoPumpOn   bool                 `json:"ato_pump_on"`
	PumpOn      bool                 `json:"pump_on"`
	DoserOn     bool                 `json:"doser_on"`
	FugeLightOn bool                 `json:"fuge_light_on"`
	LiveMode    bool                 `json:"live_mode"`
	Intensities schedule.Intensities `json:"intensities"`

	WaterTempF *float64     `json:"water_temp_f,omitempty"`
	AirTempF   *float64     `json:"air_temp_f,omitempty"`
	Humidity   *float64     `json:"humidity,omitempty"`
	Depth      *units.Depth `json:"depth,omitempty"`
	PH         *float64     `json:"ph,omitempty"`

	Alerts    []Alert   `json:"alerts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares nothing with s.
func (s Status) Clone() Status {
	c := s
	c.Alerts = append([]Alert(nil), s.Alerts...)
	c.WaterTempF = clonePtr(s.WaterTempF)
	c.AirTempF = clonePtr(s.AirTempF)
	c.Humidity = clonePtr(s.Humidity)
	c.Depth = clonePtr(s.Depth)
	c.PH = clonePtr(s.PH)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
