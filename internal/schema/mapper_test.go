package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		columns      []string
		wantStart    string
		wantEnd      string
		wantDuration string
		wantRideType string
		wantErr      bool
	}{
		{
			name:         "divvy style headers",
			columns:      []string{"ride_id", "rideable_type", "started_at", "ended_at"},
			wantStart:    "started_at",
			wantEnd:      "ended_at",
			wantRideType: "rideable_type",
		},
		{
			name:         "explicit duration in minutes",
			columns:      []string{"duration_minutes", "bike_type"},
			wantDuration: "duration_minutes",
			wantRideType: "bike_type",
		},
		{
			name:         "duration in seconds",
			columns:      []string{"duration_sec", "usertype"},
			wantDuration: "duration_sec",
		},
		{
			name:      "case insensitive match",
			columns:   []string{"Started_At", "Ended_At"},
			wantStart: "Started_At",
			wantEnd:   "Ended_At",
		},
		{
			name:         "alias priority prefers earlier candidate",
			columns:      []string{"tripduration", "duration"},
			wantDuration: "duration",
		},
		{
			name:    "no usable columns",
			columns: []string{"ride_id", "station_name"},
			wantErr: true,
		},
		{
			name:    "start without end is not enough",
			columns: []string{"started_at", "station_name"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Detect(tt.columns)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, m.StartCol)
			assert.Equal(t, tt.wantEnd, m.EndCol)
			assert.Equal(t, tt.wantDuration, m.DurationCol)
			assert.Equal(t, tt.wantRideType, m.RideTypeCol)
		})
	}
}

func TestDetectAssumptions(t *testing.T) {
	t.Parallel()

	m, err := Detect([]string{"duration_minutes"})
	require.NoError(t, err)
	assert.Contains(t, m.Assumptions, "Dataset lacks an explicit e-bike indicator; treated every trip as classic for cost calculations.")
	assert.Contains(t, m.Assumptions, "No trip start timestamp detected; weekly breakdown suppressed.")

	m, err = Detect([]string{"started_at", "ended_at", "rideable_type"})
	require.NoError(t, err)
	assert.Empty(t, m.Assumptions)
}

func TestDurationExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mapping Mapping
		want    string
	}{
		{
			name:    "seconds column divides by 60",
			mapping: Mapping{DurationCol: "duration_sec"},
			want:    `MAX(CAST("duration_sec" AS REAL) / 60.0, 0)`,
		},
		{
			name:    "minute column used directly",
			mapping: Mapping{DurationCol: "duration_minutes"},
			want:    `MAX(CAST("duration_minutes" AS REAL), 0)`,
		},
		{
			name:    "timestamp pair",
			mapping: Mapping{StartCol: "started_at", EndCol: "ended_at"},
			want:    `MAX((julianday("ended_at") - julianday("started_at")) * 1440.0, 0)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.mapping.DurationExpr())
		})
	}
}

func TestRideTypeExprs(t *testing.T) {
	t.Parallel()

	m := Mapping{RideTypeCol: "rideable_type"}
	ebike, classic := m.RideTypeExprs()
	assert.Contains(t, ebike, `LOWER("rideable_type") IN (`)
	assert.Contains(t, ebike, "'electric_bike'")
	assert.Contains(t, ebike, "'e-bike'")
	assert.Equal(t, "NOT ("+ebike+")", classic)

	// Without a ride-type column every trip is classic.
	m = Mapping{}
	ebike, classic = m.RideTypeExprs()
	assert.Equal(t, "0", ebike)
	assert.Equal(t, "1", classic)
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"started_at"`, QuoteIdent("started_at"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
