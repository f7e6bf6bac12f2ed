package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/schedule"
	"github.com/jonwingfield/reefmon/internal/timeofday"
	"github.com/jonwingfield/reefmon/internal/units"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type MockSubmitter struct {
	commands []model.Command
	err      error
}

func (m *MockSubmitter) Submit(ctx context.Context, cmd model.Command) error {
	if m.err != nil {
		return m.err
	}
	m.commands = append(m.commands, cmd)
	return nil
}

func TestLoadEmptyReturnsDefaults(t *testing.T) {
	s := openTestStore(t)
	settings, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), settings)
}

func TestSeedDoesNotOverwrite(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(Doser, []byte(`{"pump_rate_ml_min": 1.1, "doses": [{"amount_ml": 0.4, "start_time": "07:00"}]}`)))
	require.NoError(t, s.Seed(model.DefaultSettings()))

	settings, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1.1, settings.Doser.PumpRateMLMin)
	require.Len(t, settings.Doser.Doses, 1)
	assert.Equal(t, timeofday.New(7, 0, 0), settings.Doser.Doses[0].StartTime)

	versions, err := s.Versions()
	require.NoError(t, err)
	assert.Len(t, versions, len(Sections))
	assert.Equal(t, int64(1), versions[Doser])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := model.DefaultSettings()
	want.Temperature.Heater = schedule.TemperatureRange{
		Min: units.F(77), Max: units.F(79),
		MinTime: timeofday.New(10, 0, 0), MaxTime: timeofday.New(15, 0, 0),
	}
	want.Depth.Low, want.Depth.High = 70, 100
	want.Lighting = schedule.Schedule{Legs: []schedule.Leg{
		{StartTime: timeofday.New(9, 0, 0)},
		{Intensity: 170, Intensities: schedule.Intensities{51, 62, 73, 60, 44, 88}, StartTime: timeofday.New(14, 0, 0)},
		{StartTime: timeofday.New(17, 0, 0)},
	}}

	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetRejectsInvalidSections(t *testing.T) {
	tests := []struct {
		name    string
		section Section
		body    string
	}{
		{"bad json", Temperature, `{"heater":`},
		{"depth without pump flow", Depth, `{"low": 70, "high": 100, "calibration": {"low": 60, "high": 120, "high_inches": 6, "tank_surface_area": 100}}`},
		{"inverted depth", Depth, `{"low": 200, "high": 100, "calibration": {"low": 0, "high": 255, "high_inches": 10}}`},
		{"single leg", Lighting, `{"schedule": [{"start_time": "09:00"}]}`},
		{"bad time", Lighting, `{"schedule": [{"start_time": "25:00"}, {"start_time": "26:00"}]}`},
		{"negative dose", Doser, `{"pump_rate_ml_min": 1, "doses": [{"amount_ml": -1, "start_time": "07:00"}]}`},
		{"unknown", Section("ph"), `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			assert.Error(t, s.Set(tt.section, []byte(tt.body)))
			versions, err := s.Versions()
			require.NoError(t, err)
			assert.Empty(t, versions)
		})
	}
}

func TestSetBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	body := []byte(`{"heater": {"min": {"value": 78, "scale": "F"}, "max": {"value": 78, "scale": "F"}}}`)

	require.NoError(t, s.Set(Temperature, body))
	require.NoError(t, s.Set(Temperature, body))

	raw, version, err := s.Get(Temperature)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Contains(t, string(raw), `"min_time":"00:00"`)
}

func TestWatcherSubmitsChangedSections(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Seed(model.DefaultSettings()))

	sub := &MockSubmitter{}
	w, err := NewWatcher(s, sub)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Poll(ctx))
	assert.Empty(t, sub.commands, "seeded versions are the baseline")

	require.NoError(t, s.Set(Depth, []byte(`{"low": 70, "high": 100, "calibration": {"low": 60, "high": 120, "high_inches": 6, "tank_surface_area": 100, "pump_gph": 5}}`)))
	require.NoError(t, w.Poll(ctx))
	require.Len(t, sub.commands, 1)
	cmd := sub.commands[0]
	require.NotNil(t, cmd.Depth)
	assert.Equal(t, units.Depth(70), cmd.Depth.Low)
	assert.Nil(t, cmd.Temperature)
	assert.Nil(t, cmd.Lighting)
	assert.Nil(t, cmd.Doser)

	require.NoError(t, w.Poll(ctx))
	assert.Len(t, sub.commands, 1, "no change, no command")
}

func TestWatcherRetriesFailedSubmit(t *testing.T) {
	s := openTestStore(t)
	sub := &MockSubmitter{err: context.Canceled}
	w, err := NewWatcher(s, sub)
	require.NoError(t, err)

	require.NoError(t, s.Set(Doser, []byte(`{"pump_rate_ml_min": 1}`)))
	assert.ErrorIs(t, w.Poll(context.Background()), context.Canceled)

	sub.err = nil
	require.NoError(t, w.Poll(context.Background()))
	assert.Len(t, sub.commands, 1)
}
