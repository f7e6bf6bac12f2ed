package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		in   Temperature
		f    float64
		c    float64
	}{
		{"freezing", C(0), 32, 0},
		{"boiling", C(100), 212, 100},
		{"reef", F(78.8), 78.8, 26},
		{"crossover", C(-40), -40, -40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.f, tt.in.F().Value, 1e-9)
			assert.Equal(t, Fahrenheit, tt.in.F().Scale)
			assert.InDelta(t, tt.c, tt.in.C().Value, 1e-9)
			assert.Equal(t, Celsius, tt.in.C().Scale)
		})
	}
}

func TestArithmeticKeepsReceiverScale(t *testing.T) {
	sum := F(70).Add(C(10))
	assert.Equal(t, Fahrenheit, sum.Scale)
	assert.InDelta(t, 120, sum.Value, 1e-9)

	diff := C(30).Sub(F(50))
	assert.Equal(t, Celsius, diff.Scale)
	assert.InDelta(t, 20, diff.Value, 1e-9)

	assert.True(t, F(78).Less(C(26)))
	assert.True(t, C(27).Greater(F(80)))
	assert.Equal(t, F(79.75), F(79.5).Plus(0.25))
}

func TestRound(t *testing.T) {
	assert.Equal(t, F(78.1), F(78.0667).Round(1))
	assert.Equal(t, "78.1°F", F(78.0667).String())
}
