package timeofday

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const Day = 24 * 60 * 60

// TimeOfDay is a wall-clock time measured in seconds since local midnight.
type TimeOfDay int

func New(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// FromTime returns the time of day of t in t's location.
func FromTime(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return New(h, m, s)
}

// Parse accepts "HH:MM" or "HH:MM:SS".
func Parse(s string) (TimeOfDay, error) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return FromTime(t), nil
}

func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) / 60 % 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Minutes returns whole minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) / 60 }

// Add returns t shifted by d, wrapped into a single day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	v := (int(t) + int(d/time.Second)) % Day
	if v < 0 {
		v += Day
	}
	return TimeOfDay(v)
}

// Since returns the forward distance from o to t, wrapping past midnight.
func (t TimeOfDay) Since(o TimeOfDay) time.Duration {
	d := (int(t) - int(o)) % Day
	if d < 0 {
		d += Day
	}
	return time.Duration(d) * time.Second
}

func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
