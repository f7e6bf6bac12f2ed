package temperaturecontroller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwingfield/reefmon/internal/gpio"
	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/schedule"
	"github.com/jonwingfield/reefmon/internal/units"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)

func TestEvaluate(t *testing.T) {
	low, high := units.F(78), units.F(80)
	const h = 0.25

	tests := []struct {
		name     string
		state    State
		since    time.Time
		heaterOn bool
		coolerOn bool
		temp     float64
		want     action
	}{
		{
			name:  "in band stays idle",
			state: Idle, temp: 79,
			want: action{next: Idle},
		},
		{
			name:  "cold turns heater on",
			state: Idle, temp: 77.7,
			want: action{heaterChange: true, heaterOn: true, next: HeaterOn, since: base},
		},
		{
			name:  "inside lower hysteresis band does nothing",
			state: Idle, temp: 77.8,
			want: action{next: Idle},
		},
		{
			name:  "heater on until above min plus hysteresis",
			state: HeaterOn, since: base.Add(-time.Hour), heaterOn: true, temp: 78.2,
			want: action{next: HeaterOn, since: base.Add(-time.Hour)},
		},
		{
			name:  "heater off once warm",
			state: HeaterOn, since: base.Add(-time.Hour), heaterOn: true, temp: 78.3,
			want: action{heaterChange: true, heaterOn: false, next: Idle, since: base},
		},
		{
			name:  "hot turns cooler on",
			state: Idle, temp: 80.3,
			want: action{coolerChange: true, coolerOn: true, next: CoolerOn, since: base},
		},
		{
			name:  "cooler holds inside band",
			state: CoolerOn, since: base.Add(-time.Hour), coolerOn: true, temp: 79.8,
			want: action{next: CoolerOn, since: base.Add(-time.Hour)},
		},
		{
			name:  "cooler off once below max minus hysteresis",
			state: CoolerOn, since: base.Add(-time.Hour), coolerOn: true, temp: 79.7,
			want: action{coolerChange: true, coolerOn: false, next: Idle, since: base},
		},
		{
			name:  "heater times out after a day",
			state: HeaterOn, since: base.Add(-25 * time.Hour), heaterOn: true, temp: 76,
			want: action{heaterChange: true, heaterOn: false, next: TimedOut, since: base},
		},
		{
			name:  "lockout ignores cold water",
			state: TimedOut, since: base.Add(-5 * time.Minute), temp: 70,
			want: action{next: TimedOut, since: base.Add(-5 * time.Minute)},
		},
		{
			name:  "lockout expiry resumes heating",
			state: TimedOut, since: base.Add(-11 * time.Minute), temp: 70,
			want: action{heaterChange: true, heaterOn: true, next: HeaterOn, since: base},
		},
		{
			name:  "lockout expiry in band goes idle",
			state: TimedOut, since: base.Add(-11 * time.Minute), temp: 79,
			want: action{next: Idle, since: base},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluate(tt.state, tt.since, tt.heaterOn, tt.coolerOn, units.F(tt.temp), low, high, h, base)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestController() (*Controller, *gpio.MemoryPin, *gpio.MemoryPin) {
	heater, cooler := gpio.NewMemoryPin("heater"), gpio.NewMemoryPin("cooler")
	c := New(heater, cooler, model.TemperatureSettings{
		Heater: schedule.Constant(units.F(78)),
		Cooler: schedule.Constant(units.F(80)),
	}, 0.25)
	return c, heater, cooler
}

func TestTickDrivesPinsOncePerTransition(t *testing.T) {
	c, heater, cooler := newTestController()
	require.NoError(t, c.Release(base))
	assert.Equal(t, 1, heater.Writes())
	assert.Equal(t, 1, cooler.Writes())

	now := base
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Tick(now, units.F(77), true))
		now = now.Add(time.Second)
	}
	on, _ := heater.Status()
	assert.True(t, on)
	assert.Equal(t, 2, heater.Writes())
	assert.Equal(t, HeaterOn, c.State())

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Tick(now, units.F(79), true))
		now = now.Add(time.Second)
	}
	on, _ = heater.Status()
	assert.False(t, on)
	assert.Equal(t, 3, heater.Writes())
	assert.Equal(t, 1, cooler.Writes())

	heaterOn, coolerOn := c.Status()
	assert.False(t, heaterOn)
	assert.False(t, coolerOn)
}

func TestTickAcceptsCelsius(t *testing.T) {
	c, _, cooler := newTestController()
	require.NoError(t, c.Tick(base, units.C(28), true)) // 82.4F
	on, _ := cooler.Status()
	assert.True(t, on)
	assert.Equal(t, CoolerOn, c.State())
}

func TestTickWithoutReadingIsNoop(t *testing.T) {
	c, heater, _ := newTestController()
	require.NoError(t, c.Tick(base, units.Temperature{}, false))
	assert.Equal(t, 0, heater.Writes())
	assert.Empty(t, c.Alerts(base))
}

func TestPinFailureKeepsState(t *testing.T) {
	c, heater, _ := newTestController()
	heater.Fail(assert.AnError)

	assert.ErrorIs(t, c.Tick(base, units.F(70), true), assert.AnError)
	assert.Equal(t, Idle, c.State())

	heater.Fail(nil)
	require.NoError(t, c.Tick(base.Add(time.Second), units.F(70), true))
	assert.Equal(t, HeaterOn, c.State())
}

func TestTimeoutAndLockoutAlerts(t *testing.T) {
	c, heater, _ := newTestController()
	require.NoError(t, c.Tick(base, units.F(70), true))
	require.NoError(t, c.Tick(base.Add(24*time.Hour+time.Minute), units.F(70), true))

	assert.Equal(t, TimedOut, c.State())
	on, _ := heater.Status()
	assert.False(t, on)

	now := base.Add(24*time.Hour + 2*time.Minute)
	alerts := c.Alerts(now)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.ComponentTemperature, alerts[0].Component)
	assert.Contains(t, alerts[0].Message, "locked out")

	// still locked out
	require.NoError(t, c.Tick(now, units.F(70), true))
	assert.Equal(t, TimedOut, c.State())

	require.NoError(t, c.Tick(base.Add(24*time.Hour+12*time.Minute), units.F(70), true))
	assert.Equal(t, HeaterOn, c.State())
}

func TestHighTemperatureAlert(t *testing.T) {
	c, _, _ := newTestController()
	require.NoError(t, c.Tick(base, units.F(83.9), true))
	assert.Empty(t, c.Alerts(base))

	require.NoError(t, c.Tick(base, units.F(84), true))
	alerts := c.Alerts(base)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Temperature: temperature is 84.0°F", alerts[0].String())
}

func TestRangeFollowsTimeOfDay(t *testing.T) {
	c, heater, _ := newTestController()
	c.SetSettings(model.TemperatureSettings{
		Heater: schedule.TemperatureRange{
			Min: units.F(76), Max: units.F(78),
			MinTime: 4 * 3600, MaxTime: 16 * 3600,
		},
		Cooler: schedule.Constant(units.F(82)),
	})

	// 04:00 target is 76, 77 is warm enough
	early := time.Date(2024, 6, 1, 4, 0, 0, 0, time.Local)
	require.NoError(t, c.Tick(early, units.F(77), true))
	on, _ := heater.Status()
	assert.False(t, on)

	// 16:00 target is 78, 77 is too cold
	late := time.Date(2024, 6, 1, 16, 0, 0, 0, time.Local)
	require.NoError(t, c.Tick(late, units.F(77), true))
	on, _ = heater.Status()
	assert.True(t, on)
}
