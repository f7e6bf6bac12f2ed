package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonwingfield/reefmon/internal/timeofday"
)

const Channels = 6

type Intensities [Channels]uint8

// Leg is a point in the lighting schedule. Intensity scales every channel.
type Leg struct {
	Intensity   uint8               `json:"intensity"`
	Intensities Intensities         `json:"intensities"`
	StartTime   timeofday.TimeOfDay `json:"start_time"`
}

// Weighted returns the per-channel output once the overall intensity is applied.
func (l Leg) Weighted() Intensities {
	var out Intensities
	for i, ch := range l.Intensities {
		out[i] = uint8(math.Round(float64(ch) * float64(l.Intensity) / 255.0))
	}
	return out
}

// Schedule is an ordered set of legs. The first and last legs bound the
// lit part of the day; outside them every channel is off.
type Schedule struct {
	Legs []Leg `json:"schedule"`
}

func (s Schedule) Validate() error {
	if len(s.Legs) < 2 {
		return fmt.Errorf("lighting schedule needs at least 2 legs, got %d", len(s.Legs))
	}
	if !sort.SliceIsSorted(s.Legs, func(i, j int) bool { return s.Legs[i].StartTime < s.Legs[j].StartTime }) {
		return fmt.Errorf("lighting schedule legs must be ordered by start time")
	}
	return nil
}

// IntensityAt interpolates each channel linearly between the two legs that
// bracket t.
func (s Schedule) IntensityAt(t timeofday.TimeOfDay) Intensities {
	var out Intensities
	if len(s.Legs) < 2 {
		return out
	}
	if t <= s.Legs[0].StartTime || t >= s.Legs[len(s.Legs)-1].StartTime {
		return out
	}

	i := sort.Search(len(s.Legs), func(i int) bool { return s.Legs[i].StartTime > t })
	a, b := s.Legs[i-1], s.Legs[i]
	aw, bw := a.Weighted(), b.Weighted()

	// whole minutes of the actual difference, not the difference of minutes
	elapsed := float64(t.Since(a.StartTime) / time.Minute)
	interval := math.Max(1, float64(b.StartTime.Since(a.StartTime)/time.Minute))

	for ch := range out {
		from, to := float64(aw[ch]), float64(bw[ch])
		out[ch] = uint8(math.Round(from + (to-from)/interval*elapsed))
	}
	return out
}

// Blend moves from toward to by pct, clamped to [0,1].
func Blend(from, to Intensities, pct float64) Intensities {
	pct = math.Max(0, math.Min(1, pct))
	var out Intensities
	for ch := range out {
		f, t := float64(from[ch]), float64(to[ch])
		out[ch] = uint8(math.Round(f + (t-f)*pct))
	}
	return out
}
