/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRateUnmarshal(t *testing.T) {
	tests := []struct {
		text       string
		want       Rate
		wantErrMsg string
	}{
		{text: "10/s", want: Rate{Count: 10, Duration: time.Second}},
		{text: "100/m", want: Rate{Count: 100, Duration: time.Minute}},
		{text: "1000/h", want: Rate{Count: 1000, Duration: time.Hour}},
		{text: "50/S", want: Rate{Count: 50, Duration: time.Second}},
		{text: "", want: Rate{}},
		{text: "10", wantErrMsg: `incorrect format for rate "10", should be N/(s|m|h), for example 10/s, 100/m, 1000/h`},
		{text: "x/s", wantErrMsg: `incorrect format for rate "x/s", should be N/(s|m|h), for example 10/s, 100/m, 1000/h`},
		{text: "10/d", wantErrMsg: `incorrect format for rate "10/d", should be N/(s|m|h), for example 10/s, 100/m, 1000/h`},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var r Rate
			err := r.UnmarshalText([]byte(tt.text))
			if tt.wantErrMsg != "" {
				require.EqualError(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, r)
		})
	}
}

func TestRateMarshalRoundTrip(t *testing.T) {
	rate := Rate{Count: 10, Duration: time.Second}

	jsonData, err := json.Marshal(rate)
	require.NoError(t, err)
	require.Equal(t, `"10/s"`, string(jsonData))
	var fromJSON Rate
	require.NoError(t, json.Unmarshal(jsonData, &fromJSON))
	require.Equal(t, rate, fromJSON)

	yamlData, err := yaml.Marshal(rate)
	require.NoError(t, err)
	var fromYAML Rate
	require.NoError(t, yaml.Unmarshal(yamlData, &fromYAML))
	require.Equal(t, rate, fromYAML)
}

func TestRatePerSecond(t *testing.T) {
	require.InDelta(t, 10, Rate{Count: 10, Duration: time.Second}.PerSecond(), 0.0001)
	require.InDelta(t, 0.5, Rate{Count: 30, Duration: time.Minute}.PerSecond(), 0.0001)
	require.InDelta(t, 0, Rate{}.PerSecond(), 0.0001)
}
