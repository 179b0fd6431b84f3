// Package model defines the shared types for the bikepass analysis pipeline:
// ride aggregates, tariff policy values with provenance, cost breakdowns,
// run telemetry, and the typed error kinds.
package model

import "time"

// Timeline entry kinds, in the order they appear in a run narrative.
const (
	TimelineThought     = "Thought"
	TimelineAction      = "Action"
	TimelineObservation = "Observation"
	TimelineFinalAnswer = "Final Answer"
)

// TimelineEntry is one step of the ordered run narrative. Entries are
// append-only and never mutated after insertion.
type TimelineEntry struct {
	Kind      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// StepLogEntry records one collaborator invocation: which tool ran, a stable
// fingerprint of its arguments, how long it took, and how it ended.
type StepLogEntry struct {
	Step       int    `json:"step"`
	Tool       string `json:"tool"`
	ArgsHash   string `json:"args_hash"`
	LatencyMS  int64  `json:"latency_ms"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Decision values for the membership recommendation.
const (
	DecisionMembership = "Buy Monthly Membership"
	DecisionPayPerUse  = "Pay Per Ride/Minute"
)

// CostBreakdown itemizes one plan's projected monthly cost.
type CostBreakdown struct {
	Total          float64 `json:"total"`
	Base           float64 `json:"base,omitempty"`
	MembershipFee  float64 `json:"membership_fee,omitempty"`
	ClassicOverage float64 `json:"classic_overage"`
	EbikeSurcharge float64 `json:"ebike_surcharge"`
	UnlockFees     float64 `json:"unlock_fees"`
}

// CostSummary holds both plan breakdowns.
type CostSummary struct {
	PayPerUse  CostBreakdown `json:"pay_per_use"`
	Membership CostBreakdown `json:"membership"`
}

// BreakEven estimates the ride count at which pay-per-use cost reaches the
// membership fee. Rides is nil when no single-ride price was found.
type BreakEven struct {
	Rides      *int   `json:"rides"`
	Assumption string `json:"assumption"`
}

// WeekCost is the per-week cost comparison row. The membership fee is
// allocated evenly across observed weeks, an approximation rather than a
// guarantee that weekly sums equal the monthly total.
type WeekCost struct {
	WeekStart      string `json:"week_start"`
	Rides          int    `json:"rides"`
	AvgDuration    string `json:"avg_duration"`
	EbikeShare     string `json:"ebike_share"`
	PayPerUseCost  string `json:"pay_per_use_cost"`
	MembershipCost string `json:"membership_cost"`
}

// RunMetrics summarizes run execution for observability.
type RunMetrics struct {
	TotalSteps  int    `json:"total_steps"`
	TotalTimeMS int64  `json:"total_time_ms"`
	StopReason  string `json:"stop_reason"`
}

// PolicyMeta records where and when the tariff policy was captured.
type PolicyMeta struct {
	PricingURL string    `json:"pricing_url"`
	CapturedAt time.Time `json:"captured_at"`
}

// SummaryStats are the headline usage numbers surfaced with the decision.
type SummaryStats struct {
	TotalRides     float64 `json:"total_rides"`
	AverageMinutes float64 `json:"average_minutes"`
	EbikeShare     float64 `json:"ebike_share"`
}

// RunResult is the full auditable outcome of one analysis run.
type RunResult struct {
	RunID         string          `json:"run_id"`
	Decision      string          `json:"decision"`
	Justification []string        `json:"justification"`
	Citations     []Citation      `json:"citations"`
	CostSummary   CostSummary     `json:"cost_summary"`
	BreakEven     BreakEven       `json:"break_even"`
	WeeklyTable   []WeekCost      `json:"weekly_table"`
	Timeline      []TimelineEntry `json:"timeline"`
	StepLogs      []StepLogEntry  `json:"step_logs"`
	Metrics       RunMetrics      `json:"metrics"`
	PolicyMeta    PolicyMeta      `json:"policy_meta"`
	Assumptions   []string        `json:"assumptions"`
	Stats         SummaryStats    `json:"stats"`
	FinalAnswer   string          `json:"final_answer"`
}

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

// Run lifecycle states.
const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is the persisted run-history row.
type RunRecord struct {
	ID         string     `json:"id"`
	Dataset    string     `json:"dataset"`
	PricingURL string     `json:"pricing_url"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Result     *RunResult `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
