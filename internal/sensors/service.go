package sensors

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/smoothing"
	"github.com/jonwingfield/reefmon/internal/units"
)

const (
	temperatureWindow = 4
	phWindow          = 20
)

// TankProbes is the tank controller board as the sensor service sees it.
type TankProbes interface {
	ReadTemperature() (units.Temperature, error)
	ReadAirTempHumidity() (units.Temperature, float64, error)
	ReadDepth() (units.Depth, error)
}

type PHProbe interface {
	ReadPH() (float64, error)
}

type Reading struct {
	Timestamp time.Time
	Valid     bool
}

// Service turns periodic probe reads into smoothed signals. Polls push into
// the windows; controllers pull the current value when they tick.
type Service struct {
	probes TankProbes
	ph     PHProbe

	waterTemp *smoothing.RunningAverage[float64]
	airTemp   *smoothing.RunningAverage[float64]
	humidity  *smoothing.RunningAverage[float64]
	phAvg     *smoothing.RunningAverage[float64]
	depth     units.Depth

	readings map[string]Reading
	mutex    sync.RWMutex
}

// NewService builds the service. ph may be nil when no probe is fitted.
func NewService(probes TankProbes, ph PHProbe) *Service {
	return &Service{
		probes:    probes,
		ph:        ph,
		waterTemp: smoothing.NewRunningAverage[float64](temperatureWindow),
		airTemp:   smoothing.NewRunningAverage[float64](temperatureWindow),
		humidity:  smoothing.NewRunningAverage[float64](temperatureWindow),
		phAvg:     smoothing.NewRunningAverage[float64](phWindow),
		readings:  make(map[string]Reading),
	}
}

// PollTemperatures reads the water probe and the air sensor. A failure on
// one does not stop the other.
func (s *Service) PollTemperatures(now time.Time) error {
	water, waterErr := s.probes.ReadTemperature()
	air, humidity, airErr := s.probes.ReadAirTempHumidity()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if waterErr == nil {
		s.waterTemp.Push(water.F().Value)
		s.readings["water_temp"] = Reading{Timestamp: now, Valid: true}
		log.Debug().Float64("temp_f", water.F().Value).Float64("smoothed_f", s.waterTemp.Value()).Msg("Water temperature read")
	} else {
		log.Warn().Err(waterErr).Msg("Water temperature read failed")
	}

	if airErr == nil {
		s.airTemp.Push(air.F().Value)
		s.humidity.Push(humidity)
		s.readings["air"] = Reading{Timestamp: now, Valid: true}
	} else {
		log.Warn().Err(airErr).Msg("Air temperature/humidity read failed")
	}

	if waterErr != nil {
		return waterErr
	}
	return airErr
}

func (s *Service) PollDepth(now time.Time) error {
	d, err := s.probes.ReadDepth()
	if err != nil {
		log.Warn().Err(err).Msg("Depth read failed")
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.depth = d
	s.readings["depth"] = Reading{Timestamp: now, Valid: true}
	return nil
}

func (s *Service) PollPH(now time.Time) error {
	if s.ph == nil {
		return nil
	}
	ph, err := s.ph.ReadPH()
	if err != nil {
		log.Warn().Err(err).Msg("pH read failed")
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.phAvg.Push(ph)
	s.readings["ph"] = Reading{Timestamp: now, Valid: true}
	return nil
}

func (s *Service) HasPH() bool {
	return s.ph != nil
}

// WaterTemperature returns the smoothed water temperature in Fahrenheit.
func (s *Service) WaterTemperature() (units.Temperature, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.waterTemp.Ready() {
		return units.Temperature{}, false
	}
	return units.F(s.waterTemp.Value()), true
}

func (s *Service) AirTemperature() (units.Temperature, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.airTemp.Ready() {
		return units.Temperature{}, false
	}
	return units.F(s.airTemp.Value()), true
}

func (s *Service) Humidity() (float64, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.humidity.Value(), s.humidity.Ready()
}

func (s *Service) Depth() (units.Depth, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.depth, s.readings["depth"].Valid
}

// PH returns the smoothed pH rounded to two decimals.
func (s *Service) PH() (float64, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.phAvg.Ready() {
		return 0, false
	}
	return math.Round(s.phAvg.Value()*100) / 100, true
}

// LastRead reports when a signal last had a good reading.
func (s *Service) LastRead(signal string) (Reading, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	r, ok := s.readings[signal]
	return r, ok
}
