package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ist(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, IST)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSession_IsOpen(t *testing.T) {
	s, err := NSE()
	require.NoError(t, err)

	tests := []struct {
		at   string
		want bool
	}{
		{"2026-03-02 09:14", false},
		{"2026-03-02 09:15", true},
		{"2026-03-02 15:29", true},
		{"2026-03-02 15:30", false},
		{"2026-03-07 11:00", false}, // Saturday
		{"2026-01-26 11:00", false}, // holiday
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsOpen(ist(tt.at)))
		})
	}

	// 05:45 UTC is 11:15 IST
	assert.True(t, s.IsOpen(time.Date(2026, 3, 2, 5, 45, 0, 0, time.UTC)))
}

func TestSession_NextOpen(t *testing.T) {
	s, err := NSE()
	require.NoError(t, err)

	assert.WithinDuration(t, ist("2026-03-02 09:15"), s.NextOpen(ist("2026-03-02 08:00")), 0)
	assert.WithinDuration(t, ist("2026-03-03 09:15"), s.NextOpen(ist("2026-03-02 10:00")), 0)
	// Friday evening skips the weekend
	assert.WithinDuration(t, ist("2026-03-09 09:15"), s.NextOpen(ist("2026-03-06 16:00")), 0)
	// Sunday before Republic Day Monday
	assert.WithinDuration(t, ist("2026-01-27 09:15"), s.NextOpen(ist("2026-01-25 12:00")), 0)
}

func TestNSE_CustomHolidays(t *testing.T) {
	s, err := NSE("2027-01-26")
	require.NoError(t, err)
	assert.True(t, s.IsHoliday(ist("2027-01-26 10:00")))
	assert.False(t, s.IsHoliday(ist("2026-01-26 10:00")))

	_, err = NSE("26/01/2027")
	assert.Error(t, err)
}

func TestSession_Status(t *testing.T) {
	s, err := NSE()
	require.NoError(t, err)
	assert.Equal(t, "open, closes in 1h30m", s.Status(ist("2026-03-02 14:00")))
	assert.Equal(t, "closed, opens Mon 09:15 (in 2h15m)", s.Status(ist("2026-03-02 07:00")))
}
