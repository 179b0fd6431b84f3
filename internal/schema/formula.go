package schema

import "strings"

// QuoteIdent quotes a SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DurationExpr builds the SQL expression computing ride duration in minutes
// for one trip row. Negative durations clamp to zero, protecting against
// clock skew and bad exports. Duration columns whose name mentions seconds
// are divided by 60; anything else is interpreted as already-minutes.
func (m *Mapping) DurationExpr() string {
	if m.DurationCol != "" {
		col := QuoteIdent(m.DurationCol)
		if strings.Contains(strings.ToLower(m.DurationCol), "sec") {
			return "MAX(CAST(" + col + " AS REAL) / 60.0, 0)"
		}
		return "MAX(CAST(" + col + " AS REAL), 0)"
	}

	start := QuoteIdent(m.StartCol)
	end := QuoteIdent(m.EndCol)
	return "MAX((julianday(" + end + ") - julianday(" + start + ")) * 1440.0, 0)"
}

// Labels a ride-type column may carry for electric bikes.
var ebikeLabels = []string{"electric_bike", "electric", "electric_bicycle", "ebike", "e-bike"}

// RideTypeExprs builds the boolean SQL conditions partitioning rides into
// e-bike and classic. Without a ride-type column every trip is classic by
// convention, matching the assumption Detect records.
func (m *Mapping) RideTypeExprs() (ebike, classic string) {
	if m.RideTypeCol == "" {
		return "0", "1"
	}

	quoted := make([]string, len(ebikeLabels))
	for i, label := range ebikeLabels {
		quoted[i] = "'" + label + "'"
	}
	col := "LOWER(" + QuoteIdent(m.RideTypeCol) + ")"
	ebike = col + " IN (" + strings.Join(quoted, ", ") + ")"
	return ebike, "NOT (" + ebike + ")"
}
