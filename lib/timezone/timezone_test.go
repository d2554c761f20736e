package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{"", "  ", "Local", "local"} {
		loc, err := Load(name)
		require.NoError(t, err)
		require.Equal(t, time.Local, loc)
	}

	loc, err := Load("UTC")
	require.NoError(t, err)
	require.Equal(t, time.UTC.String(), loc.String())

	_, err = Load("Mars/Olympus_Mons")
	require.Error(t, err)
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)

	cases := []struct {
		in     time.Time
		expect time.Time
	}{
		{
			in:     time.Date(2024, time.August, 26, 23, 59, 59, 0, loc),
			expect: time.Date(2024, time.August, 26, 0, 0, 0, 0, loc),
		},
		{
			in:     time.Date(2024, time.August, 25, 0, 0, 0, 0, loc),
			expect: time.Date(2024, time.August, 25, 0, 0, 0, 0, loc),
		},
		{
			in:     time.Date(2024, time.March, 1, 7, 30, 0, 0, time.UTC),
			expect: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expect, StartOfDay(test.in))
	}
}
