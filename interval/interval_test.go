package interval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "Seconds", input: "45s", want: 45 * time.Second},
		{name: "Minutes", input: "30m", want: 30 * time.Minute},
		{name: "Hours", input: "2h", want: 2 * time.Hour},
		{name: "Days", input: "3d", want: 72 * time.Hour},
		{name: "Weeks", input: "4w", want: 28 * 24 * time.Hour},
		{name: "Zero is allowed", input: "0d", want: 0},
		{name: "Years are not recognised", input: "1y", wantErr: true},
		{name: "Missing unit", input: "10", wantErr: true},
		{name: "Missing count", input: "d", wantErr: true},
		{name: "Negative count", input: "-1d", wantErr: true},
		{name: "Upper case unit", input: "1D", wantErr: true},
		{name: "Trailing characters", input: "1dd", wantErr: true},
		{name: "Whitespace", input: " 1d", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
		{name: "Overflow", input: "99999999999w", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBefore(t *testing.T) {
	now := time.Date(2020, 1, 8, 12, 0, 0, 0, time.UTC)

	got, err := Before(now, "1w")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC), got)

	_, err = Before(now, "1y")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
