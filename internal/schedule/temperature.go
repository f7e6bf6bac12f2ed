package schedule

import (
	"github.com/jonwingfield/reefmon/internal/timeofday"
	"github.com/jonwingfield/reefmon/internal/units"
)

// TemperatureRange is a target that drifts across the day: it climbs from
// Min at MinTime to Max at MaxTime, then falls back to Min by the next
// MinTime.
type TemperatureRange struct {
	Min     units.Temperature   `json:"min"`
	Max     units.Temperature   `json:"max"`
	MinTime timeofday.TimeOfDay `json:"min_time"`
	MaxTime timeofday.TimeOfDay `json:"max_time"`
}

// Constant returns a range that holds t all day.
func Constant(t units.Temperature) TemperatureRange {
	return TemperatureRange{Min: t, Max: t}
}

// At returns the target at the given time of day, rounded to a tenth of a
// degree in Min's scale.
func (r TemperatureRange) At(t timeofday.TimeOfDay) units.Temperature {
	if r.MinTime == r.MaxTime {
		return r.Min
	}

	lo := r.Min
	hi := r.Max.In(lo.Scale)
	rising := r.MaxTime.Since(r.MinTime)
	falling := r.MinTime.Since(r.MaxTime)

	var v float64
	if elapsed := t.Since(r.MinTime); elapsed <= rising {
		v = lo.Value + (hi.Value-lo.Value)*elapsed.Seconds()/rising.Seconds()
	} else {
		elapsed = t.Since(r.MaxTime)
		v = hi.Value - (hi.Value-lo.Value)*elapsed.Seconds()/falling.Seconds()
	}
	return units.Temperature{Value: v, Scale: lo.Scale}.Round(1)
}
