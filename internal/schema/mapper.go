// Package schema maps heterogeneous trip-log column names onto the semantic
// roles the aggregation queries need, and builds the SQL formulas for ride
// duration and e-bike classification on top of that mapping.
package schema

import (
	"strings"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Candidate spellings per role, in priority order. The first alias that
// matches an actual column wins; matching is case-insensitive and exact.
var (
	startCandidates = []string{
		"started_at",
		"start_time",
		"starttime",
		"start_time_local",
		"start_timestamp",
		"start_date",
		"starttime_local",
	}

	endCandidates = []string{
		"ended_at",
		"end_time",
		"stoptime",
		"stop_time",
		"end_time_local",
		"end_timestamp",
		"stop_timestamp",
		"end_date",
	}

	durationCandidates = []string{
		"duration",
		"duration_sec",
		"duration_secs",
		"duration_seconds",
		"duration_min",
		"duration_mins",
		"duration_minutes",
		"tripduration",
		"ride_duration",
	}

	rideTypeCandidates = []string{
		"rideable_type",
		"ride_type",
		"bike_type",
		"vehicle_type",
		"ride_category",
		"bike_class",
	}
)

// Mapping binds the dataset's actual column names to semantic roles. Empty
// string means the role is absent. At least DurationCol or the StartCol and
// EndCol pair is always set; Detect fails otherwise.
type Mapping struct {
	StartCol    string
	EndCol      string
	DurationCol string
	RideTypeCol string
	Assumptions []string
}

// Detect resolves the four semantic roles against the dataset's column names.
// It returns a SchemaError when neither a duration column nor both timestamp
// columns are present, the minimum viable schema for the analysis.
func Detect(columns []string) (*Mapping, error) {
	lowerToActual := make(map[string]string, len(columns))
	for _, col := range columns {
		if col == "" {
			continue
		}
		lower := strings.ToLower(col)
		if _, ok := lowerToActual[lower]; !ok {
			lowerToActual[lower] = col
		}
	}

	selectColumn := func(candidates []string) string {
		for _, candidate := range candidates {
			if actual, ok := lowerToActual[candidate]; ok {
				return actual
			}
		}
		return ""
	}

	m := &Mapping{
		StartCol:    selectColumn(startCandidates),
		EndCol:      selectColumn(endCandidates),
		DurationCol: selectColumn(durationCandidates),
		RideTypeCol: selectColumn(rideTypeCandidates),
	}

	if m.DurationCol == "" && (m.StartCol == "" || m.EndCol == "") {
		return nil, &model.SchemaError{
			Reason: "trip dataset must include either a duration column (e.g., duration_sec) or both start and end timestamps",
		}
	}

	if m.RideTypeCol == "" {
		m.Assumptions = append(m.Assumptions,
			"Dataset lacks an explicit e-bike indicator; treated every trip as classic for cost calculations.")
	}
	if m.StartCol == "" {
		m.Assumptions = append(m.Assumptions,
			"No trip start timestamp detected; weekly breakdown suppressed.")
	}

	return m, nil
}
