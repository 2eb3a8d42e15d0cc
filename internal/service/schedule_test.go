package service

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

func TestScheduleForKeepsWallClock(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	tests := []struct {
		name    string
		start   time.Time
		sendDay int
		loc     *time.Location
		want    time.Time
	}{
		{
			name:    "utc",
			start:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			sendDay: 3,
			loc:     time.UTC,
			want:    time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "day zero",
			start:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			sendDay: 0,
			loc:     nil,
			want:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			// 09:00 CST before the change, 09:00 CDT after it
			name:    "across spring forward",
			start:   time.Date(2025, 3, 7, 9, 0, 0, 0, chicago),
			sendDay: 3,
			loc:     chicago,
			want:    time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		},
		{
			name:    "across fall back",
			start:   time.Date(2025, 10, 31, 9, 0, 0, 0, chicago),
			sendDay: 7,
			loc:     chicago,
			want:    time.Date(2025, 11, 7, 15, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScheduleFor(tt.start, tt.sendDay, tt.loc)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ScheduleFor() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScheduleForIsMonotonic(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	start := time.Date(2025, 1, 1, 8, 30, 0, 0, chicago)

	prev := ScheduleFor(start, 0, chicago)
	for day := 1; day <= 400; day++ {
		next := ScheduleFor(start, day, chicago)
		require.True(t, next.After(prev), "day %d", day)
		prev = next
	}
}

func TestParseStartDate(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	got, err := ParseStartDate("2025-06-01T09:00:00Z", chicago)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))

	got, err = ParseStartDate("2025-06-01T09:00", chicago)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)))

	_, err = ParseStartDate("", chicago)
	var validation *appErrors.ErrValidationFailed
	assert.ErrorAs(t, err, &validation)

	_, err = ParseStartDate("next tuesday", chicago)
	assert.ErrorAs(t, err, &validation)
}

func TestResolveLocation(t *testing.T) {
	loc, err := resolveLocation("", "Europe/Paris", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	loc, err = resolveLocation("", "")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = resolveLocation("Mars/Olympus")
	var validation *appErrors.ErrValidationFailed
	assert.ErrorAs(t, err, &validation)
}
