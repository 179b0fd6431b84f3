// Package aggregate issues the two read-only aggregate queries of a run
// (overall totals and the weekly breakdown) against the embedded trip
// engine, and maps the normalized rows into stats structs.
package aggregate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bikepass-cli/internal/model"
	"github.com/sells-group/bikepass-cli/internal/schema"
	"github.com/sells-group/bikepass-cli/internal/tripdb"
)

// OverallSQL renders the overall-totals statement for the given mapping.
func OverallSQL(m *schema.Mapping) string {
	durationExpr := m.DurationExpr()
	ebike, classic := m.RideTypeExprs()

	return `
WITH trips_enriched AS (
  SELECT *, ` + durationExpr + ` AS duration_minutes
  FROM ` + tripdb.TableName + `
)
SELECT
  COUNT(*) AS total_rides,
  COALESCE(SUM(duration_minutes), 0) AS total_minutes,
  COALESCE(AVG(duration_minutes), 0) AS avg_minutes,
  COALESCE(SUM(CASE WHEN ` + ebike + ` THEN 1 ELSE 0 END), 0) AS ebike_rides,
  COALESCE(SUM(CASE WHEN ` + ebike + ` THEN duration_minutes ELSE 0 END), 0) AS ebike_minutes,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN duration_minutes ELSE 0 END), 0) AS classic_minutes,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN MAX(duration_minutes - 30, 0) ELSE 0 END), 0) AS classic_over_30,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN MAX(duration_minutes - 45, 0) ELSE 0 END), 0) AS classic_over_45
FROM trips_enriched`
}

// WeeklySQL renders the weekly-breakdown statement. Buckets start on Monday.
func WeeklySQL(m *schema.Mapping) string {
	durationExpr := m.DurationExpr()
	ebike, classic := m.RideTypeExprs()
	start := schema.QuoteIdent(m.StartCol)

	return `
WITH trips_enriched AS (
  SELECT *, ` + durationExpr + ` AS duration_minutes
  FROM ` + tripdb.TableName + `
)
SELECT
  date(` + start + `, 'weekday 0', '-6 days') AS week_start,
  COUNT(*) AS rides,
  COALESCE(AVG(duration_minutes), 0) AS avg_minutes,
  COALESCE(SUM(CASE WHEN ` + ebike + ` THEN 1 ELSE 0 END), 0) AS ebike_rides,
  COALESCE(SUM(duration_minutes), 0) AS total_minutes,
  COALESCE(SUM(CASE WHEN ` + ebike + ` THEN duration_minutes ELSE 0 END), 0) AS ebike_minutes,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN duration_minutes ELSE 0 END), 0) AS classic_minutes,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN MAX(duration_minutes - 30, 0) ELSE 0 END), 0) AS classic_over_30,
  COALESCE(SUM(CASE WHEN ` + classic + ` THEN MAX(duration_minutes - 45, 0) ELSE 0 END), 0) AS classic_over_45
FROM trips_enriched
GROUP BY 1
ORDER BY 1`
}

// Overall runs the overall-totals query and maps the single result row.
func Overall(ctx context.Context, eng *tripdb.Engine, m *schema.Mapping) (*model.RideStats, string, error) {
	query := OverallSQL(m)
	rows, err := eng.Query(ctx, query)
	if err != nil {
		return nil, query, err
	}
	if len(rows) == 0 {
		return nil, query, eris.New("aggregate: trip dataset returned no rows")
	}

	row := rows[0]
	return &model.RideStats{
		TotalRides:     num(row, "total_rides"),
		TotalMinutes:   num(row, "total_minutes"),
		AvgMinutes:     num(row, "avg_minutes"),
		EbikeRides:     num(row, "ebike_rides"),
		EbikeMinutes:   num(row, "ebike_minutes"),
		ClassicMinutes: num(row, "classic_minutes"),
		ClassicOver30:  num(row, "classic_over_30"),
		ClassicOver45:  num(row, "classic_over_45"),
	}, query, nil
}

// Weekly runs the weekly-breakdown query. Callers must only invoke it when
// the mapping has a start-timestamp column.
func Weekly(ctx context.Context, eng *tripdb.Engine, m *schema.Mapping) ([]model.WeekStats, string, error) {
	query := WeeklySQL(m)
	rows, err := eng.Query(ctx, query)
	if err != nil {
		return nil, query, err
	}

	weeks := make([]model.WeekStats, 0, len(rows))
	for _, row := range rows {
		weeks = append(weeks, model.WeekStats{
			WeekStart:      str(row, "week_start"),
			Rides:          num(row, "rides"),
			AvgMinutes:     num(row, "avg_minutes"),
			EbikeRides:     num(row, "ebike_rides"),
			TotalMinutes:   num(row, "total_minutes"),
			EbikeMinutes:   num(row, "ebike_minutes"),
			ClassicMinutes: num(row, "classic_minutes"),
			ClassicOver30:  num(row, "classic_over_30"),
			ClassicOver45:  num(row, "classic_over_45"),
		})
	}
	return weeks, query, nil
}

func num(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func str(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}
