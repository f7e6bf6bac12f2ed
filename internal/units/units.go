package units

import (
	"fmt"
	"math"
)

// Depth is a raw reading from the depth sensor. It only has meaning relative
// to other readings and the calibration points.
type Depth uint16

type Scale string

const (
	Celsius    Scale = "C"
	Fahrenheit Scale = "F"
)

// Temperature carries its scale so arithmetic never mixes units silently.
type Temperature struct {
	Value float64 `json:"value"`
	Scale Scale   `json:"scale"`
}

func C(v float64) Temperature { return Temperature{Value: v, Scale: Celsius} }
func F(v float64) Temperature { return Temperature{Value: v, Scale: Fahrenheit} }

// F returns the temperature in Fahrenheit.
func (t Temperature) F() Temperature {
	if t.Scale == Celsius {
		return F(t.Value*9.0/5.0 + 32.0)
	}
	return t
}

// C returns the temperature in Celsius.
func (t Temperature) C() Temperature {
	if t.Scale == Fahrenheit {
		return C((t.Value - 32.0) * 5.0 / 9.0)
	}
	return t
}

// In converts t to the given scale.
func (t Temperature) In(s Scale) Temperature {
	if s == Celsius {
		return t.C()
	}
	return t.F()
}

// Add adds o, converted to t's scale.
func (t Temperature) Add(o Temperature) Temperature {
	return Temperature{Value: t.Value + o.In(t.Scale).Value, Scale: t.Scale}
}

// Sub subtracts o, converted to t's scale.
func (t Temperature) Sub(o Temperature) Temperature {
	return Temperature{Value: t.Value - o.In(t.Scale).Value, Scale: t.Scale}
}

// Plus shifts t by a delta expressed in t's own scale, e.g. a hysteresis band.
func (t Temperature) Plus(delta float64) Temperature {
	return Temperature{Value: t.Value + delta, Scale: t.Scale}
}

func (t Temperature) Less(o Temperature) bool    { return t.Value < o.In(t.Scale).Value }
func (t Temperature) Greater(o Temperature) bool { return t.Value > o.In(t.Scale).Value }

// Round rounds to the given number of decimal places.
func (t Temperature) Round(places int) Temperature {
	p := math.Pow(10, float64(places))
	return Temperature{Value: math.Round(t.Value*p) / p, Scale: t.Scale}
}

func (t Temperature) String() string {
	return fmt.Sprintf("%.1f°%s", t.Value, t.Scale)
}
