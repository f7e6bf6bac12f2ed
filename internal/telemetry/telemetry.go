package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/datadog"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/notifications"
)

var (
	gauge  = datadog.Gauge
	notify = notifications.Send
)

type StatusSource interface {
	Snapshot() model.Status
}

type Publisher interface {
	Publish(payload []byte) error
}

// Reporter ships the controller status off the box. Gauges go to Datadog and
// the full document to MQTT. Each alert is pushed once when it first shows up.
type Reporter struct {
	source       StatusSource
	publisher    Publisher
	notifyAlerts bool

	raised map[string]bool
}

// NewReporter builds a reporter. publisher may be nil when MQTT is not
// configured.
func NewReporter(source StatusSource, publisher Publisher, notifyAlerts bool) *Reporter {
	return &Reporter{
		source:       source,
		publisher:    publisher,
		notifyAlerts: notifyAlerts,
		raised:       map[string]bool{},
	}
}

func (r *Reporter) Run(ctx context.Context, clock clockwork.Clock, interval time.Duration) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := r.Report(); err != nil {
				log.Warn().Err(err).Msg("Telemetry report failed")
			}
		}
	}
}

// Report sends one round of telemetry. Nothing is sent before the controller
// has published its first status.
func (r *Reporter) Report() error {
	s := r.source.Snapshot()
	if s.UpdatedAt.IsZero() {
		return nil
	}

	emitGauges(s)
	r.notifyNewAlerts(s.Alerts)

	if r.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return r.publisher.Publish(payload)
}

func emitGauges(s model.Status) {
	gauge("equipment.heater", boolGauge(s.HeaterOn))
	gauge("equipment.cooler", boolGauge(s.CoolerOn))
	gauge("equipment.ato_pump", boolGauge(s.AtoPumpOn))
	gauge("equipment.return_pump", boolGauge(s.PumpOn))
	gauge("equipment.doser", boolGauge(s.DoserOn))
	gauge("equipment.fuge_light", boolGauge(s.FugeLightOn))
	gauge("lighting.live_mode", boolGauge(s.LiveMode))
	for ch, v := range s.Intensities {
		gauge("lighting.intensity", float64(v), fmt.Sprintf("channel:%d", ch))
	}

	if s.WaterTempF != nil {
		gauge("water.temperature_f", *s.WaterTempF)
	}
	if s.AirTempF != nil {
		gauge("air.temperature_f", *s.AirTempF)
	}
	if s.Humidity != nil {
		gauge("air.humidity", *s.Humidity)
	}
	if s.Depth != nil {
		gauge("water.depth", float64(*s.Depth))
	}
	if s.PH != nil {
		gauge("water.ph", *s.PH)
	}
	gauge("alerts.active", float64(len(s.Alerts)))
}

func boolGauge(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func (r *Reporter) notifyNewAlerts(alerts []model.Alert) {
	current := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		key := string(a.Component) + "/" + a.Kind
		current[key] = true
		if r.raised[key] {
			continue
		}
		log.Warn().Str("component", string(a.Component)).Str("alert", a.Message).Msg("Alert raised")
		if r.notifyAlerts {
			if err := notify(string(a.Component)+" alert", a.Message); err != nil {
				log.Error().Err(err).Msg("Failed to send alert notification")
				// try again next round
				continue
			}
		}
		r.raised[key] = true
	}

	for key := range r.raised {
		if !current[key] {
			log.Info().Str("alert", key).Msg("Alert cleared")
			delete(r.raised, key)
		}
	}
}
