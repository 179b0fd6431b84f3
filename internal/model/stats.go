package model

// RideStats holds the aggregate metrics computed over the whole trip log.
// Overage minutes are already floored at zero by the duration formulas.
type RideStats struct {
	TotalRides     float64 `json:"total_rides"`
	TotalMinutes   float64 `json:"total_minutes"`
	AvgMinutes     float64 `json:"avg_minutes"`
	EbikeRides     float64 `json:"ebike_rides"`
	EbikeMinutes   float64 `json:"ebike_minutes"`
	ClassicMinutes float64 `json:"classic_minutes"`
	ClassicOver30  float64 `json:"classic_over_30"`
	ClassicOver45  float64 `json:"classic_over_45"`
}

// EbikeShare returns the fraction of rides taken on e-bikes.
func (s RideStats) EbikeShare() float64 {
	if s.TotalRides <= 0 {
		return 0
	}
	return s.EbikeRides / s.TotalRides
}

// WeekStats is one calendar-week bucket of ride aggregates, keyed by the
// week-start date (ISO date string).
type WeekStats struct {
	WeekStart      string  `json:"week_start"`
	Rides          float64 `json:"rides"`
	AvgMinutes     float64 `json:"avg_minutes"`
	EbikeRides     float64 `json:"ebike_rides"`
	TotalMinutes   float64 `json:"total_minutes"`
	EbikeMinutes   float64 `json:"ebike_minutes"`
	ClassicMinutes float64 `json:"classic_minutes"`
	ClassicOver30  float64 `json:"classic_over_30"`
	ClassicOver45  float64 `json:"classic_over_45"`
}
