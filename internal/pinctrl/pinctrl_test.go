package pinctrl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGetAllOutput(t *testing.T) {
	sample := `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 1: ip    pu | hi // ID_SCL/GPIO1 = input
 2: no    pu | -- // GPIO2 = none
 4: ip    pn | lo // GPIO4 = input
 5: op dh pu | hi // GPIO5 = output
17: op dh pu | hi // GPIO17 = output
22: op dl pn | lo // GPIO22 = output
`

	states := parseGetOutput(strings.NewReader(sample))
	require.Len(t, states, 7)

	assert.Equal(t, PinState{Pin: 5, Mode: "op", Pull: "pu", Drive: "dh", Level: "hi", Comment: "GPIO5 = output"}, states[5])
	assert.Equal(t, "--", states[2].Level)
	assert.Equal(t, "no", states[2].Mode)
	assert.Equal(t, "dl", states[22].Drive)
	assert.Equal(t, "lo", states[22].Level)
}

func TestParseSkipsNoise(t *testing.T) {
	states := parseGetOutput(strings.NewReader("garbage\n\n17: op dh pu | hi // GPIO17 = output\n"))
	assert.Len(t, states, 1)
}

func TestReadLevel(t *testing.T) {
	orig := run
	t.Cleanup(func() { run = orig })

	tests := []struct {
		out     string
		err     error
		want    bool
		wantErr bool
	}{
		{out: "1\n", want: true},
		{out: "0\n", want: false},
		{out: "??\n", wantErr: true},
		{err: errors.New("exec: pinctrl not found"), wantErr: true},
	}

	for _, tt := range tests {
		run = func(args ...string) ([]byte, error) {
			assert.Equal(t, []string{"lev", "17"}, args)
			return []byte(tt.out), tt.err
		}
		got, err := ReadLevel(17)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadAllPins(t *testing.T) {
	orig := run
	t.Cleanup(func() { run = orig })
	run = func(args ...string) ([]byte, error) {
		return []byte("27: op dh pu | hi // GPIO27 = output\n"), nil
	}

	states, err := ReadAllPins()
	require.NoError(t, err)
	assert.Equal(t, "hi", states[27].Level)
}
