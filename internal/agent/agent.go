// Package agent runs the full analysis pipeline for one trip log and one
// pricing page: schema detection, aggregate queries, tariff retrieval and
// extraction, and the cost comparison. The flow is strictly sequential and
// fail-fast; every collaborator call lands in the timeline and step log.
package agent

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bikepass-cli/internal/aggregate"
	"github.com/sells-group/bikepass-cli/internal/calc"
	"github.com/sells-group/bikepass-cli/internal/costmodel"
	"github.com/sells-group/bikepass-cli/internal/dataset"
	"github.com/sells-group/bikepass-cli/internal/model"
	"github.com/sells-group/bikepass-cli/internal/pricing"
	"github.com/sells-group/bikepass-cli/internal/schema"
	"github.com/sells-group/bikepass-cli/internal/tripdb"
)

// Tool names as they appear in the step log.
const (
	toolCSVSQL          = "csv_sql"
	toolPolicyRetriever = "policy_retriever"
	toolCalculator      = "calculator"
)

// Params identify one run.
type Params struct {
	RunID          string
	DatasetLocator string
	PricingURL     string
}

// Agent owns the per-run collaborators' construction. Agents are cheap and
// safe to share; each Run builds its own engine and page cache, so
// concurrent runs stay isolated.
type Agent struct {
	loader  *dataset.Loader
	fetcher *pricing.Fetcher
	specs   []pricing.MetricSpec
	topK    int
}

// Options tune the agent.
type Options struct {
	TopK int
}

// New creates an Agent. The metric extraction policy is loaded once from
// the embedded document.
func New(loader *dataset.Loader, fetcher *pricing.Fetcher, opts Options) (*Agent, error) {
	specs, err := pricing.LoadMetricSpecs()
	if err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = pricing.DefaultTopK
	}
	return &Agent{loader: loader, fetcher: fetcher, specs: specs, topK: topK}, nil
}

// RunError carries the partial timeline and step log of a failed run so
// callers can still audit how far the run got.
type RunError struct {
	Err      error
	Timeline []model.TimelineEntry
	StepLogs []model.StepLogEntry
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Run executes the pipeline: load dataset, detect schema, aggregate overall
// and weekly, retrieve and parse the tariff policy, compare plan costs.
// Any fatal error ends the run immediately with a failure Final Answer; the
// engine is released on every exit path.
func (a *Agent) Run(ctx context.Context, p Params) (*model.RunResult, error) {
	startTS := time.Now()
	rec := &recorder{}
	log := zap.L().With(zap.String("run_id", p.RunID))

	result, err := a.run(ctx, p, rec, log)
	if err != nil {
		rec.finalAnswer("Run failed: " + err.Error())
		log.Error("agent: run failed", zap.Error(err))
		return nil, &RunError{Err: err, Timeline: rec.timeline, StepLogs: rec.steps}
	}

	result.Metrics = model.RunMetrics{
		TotalSteps:  len(rec.steps),
		TotalTimeMS: time.Since(startTS).Milliseconds(),
		StopReason:  "Completed",
	}
	log.Info("agent: run complete",
		zap.String("decision", result.Decision),
		zap.Int("steps", len(rec.steps)),
	)
	return result, nil
}

func (a *Agent) run(ctx context.Context, p Params, rec *recorder, log *zap.Logger) (*model.RunResult, error) {
	table, err := a.loader.Load(ctx, p.DatasetLocator)
	if err != nil {
		return nil, err
	}

	eng, err := tripdb.Open(ctx, table.Header, table.Rows)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	mapping, err := schema.Detect(eng.Columns())
	if err != nil {
		return nil, err
	}
	assumptions := append([]string{}, mapping.Assumptions...)

	// Overall aggregates.
	rec.thought("Assess ride volumes and durations to understand the rider's usage profile.")
	rec.action("csv_sql: aggregate ride metrics")
	statsStart := time.Now()
	stats, statsSQL, err := aggregate.Overall(ctx, eng, mapping)
	rec.logStep(toolCSVSQL, map[string]any{"sql": statsSQL}, time.Since(statsStart), err)
	if err != nil {
		return nil, err
	}
	rec.observation(fmt.Sprintf("Trips summary: %d total rides, average duration %s minutes, e-bike share %s.",
		int(stats.TotalRides),
		costmodel.FormatNumber(stats.AvgMinutes),
		costmodel.FormatPercent(stats.EbikeShare()),
	))

	// Weekly breakdown, only with a start timestamp to bucket on.
	var weeks []model.WeekStats
	if mapping.StartCol != "" {
		rec.thought("Break the rides down by week to understand cadence.")
		rec.action("csv_sql: weekly ride breakdown")
		weeklyStart := time.Now()
		var weeklySQL string
		weeks, weeklySQL, err = aggregate.Weekly(ctx, eng, mapping)
		rec.logStep(toolCSVSQL, map[string]any{"sql": weeklySQL}, time.Since(weeklyStart), err)
		if err != nil {
			return nil, err
		}
		rec.observation(fmt.Sprintf("Computed weekly breakdown with %d rows.", len(weeks)))
	} else {
		rec.observation("Weekly breakdown skipped because start timestamp column was not found.")
	}

	// Tariff retrieval: ten sequential lookups against one cached page.
	rec.thought("Consult the official pricing page for membership fees and per-minute charges.")
	retriever := pricing.NewRetriever(a.fetcher, p.PricingURL)
	results := make(map[string][]model.Passage, len(a.specs))
	for _, spec := range a.specs {
		query := spec.RetrievalQuery(p.PricingURL)
		rec.action("policy_retriever: " + spec.Description)
		lookupStart := time.Now()
		passages, err := retriever.Retrieve(ctx, query, a.topK)
		rec.logStep(toolPolicyRetriever, map[string]any{"query": query, "k": a.topK}, time.Since(lookupStart), err)
		if err != nil {
			return nil, err
		}
		results[spec.Key] = passages

		if len(passages) > 0 {
			rec.observation(fmt.Sprintf("%s: %q", spec.Description, truncate(passages[0].Text, 160)))
		} else {
			rec.observation(spec.Description + ": no relevant snippet found.")
		}
	}

	policy := pricing.ParsePolicy(p.PricingURL, a.specs, results, retriever.CapturedAt())
	assumptions = append(assumptions, policy.Assumptions...)
	rec.observation(fmt.Sprintf("Parsed policy values: membership %s, single ride %s.",
		costmodel.FormatCurrency(policy.Value(model.MembershipPrice)),
		costmodel.FormatCurrency(policy.Value(model.SingleRidePrice)),
	))

	// Cost comparison through the restricted calculator.
	payTerms := costmodel.PayPerUseTerms(stats, policy)
	rec.action("calculator: sum pay-per-use costs")
	payExpr := payTerms.Expression()
	payStart := time.Now()
	payTotal, err := calc.Eval(payExpr)
	rec.logStep(toolCalculator, map[string]any{"expression": payExpr}, time.Since(payStart), err)
	if err != nil {
		return nil, err
	}

	memberTerms := costmodel.MembershipTerms(stats, policy)
	rec.action("calculator: sum membership costs")
	memberExpr := memberTerms.Expression()
	memberStart := time.Now()
	memberTotal, err := calc.Eval(memberExpr)
	rec.logStep(toolCalculator, map[string]any{"expression": memberExpr}, time.Since(memberStart), err)
	if err != nil {
		return nil, err
	}

	summary, decision := costmodel.Summarize(payTerms, payTotal, memberTerms, memberTotal)
	breakEvenRides := costmodel.BreakEvenRides(policy)
	weeklyTable := costmodel.WeeklyTable(weeks, policy)
	justification := buildJustification(stats, policy, summary, payTotal, memberTotal)

	finalAnswer := fmt.Sprintf("Decision: %s\nPay Per Use Total: %s\nMembership Total: %s\nBreak-even rides (approx): %s\nAssumptions: %s",
		decision,
		costmodel.FormatCurrency(payTotal),
		costmodel.FormatCurrency(memberTotal),
		formatBreakEven(breakEvenRides),
		formatAssumptions(assumptions),
	)
	rec.finalAnswer(finalAnswer)

	return &model.RunResult{
		RunID:         p.RunID,
		Decision:      decision,
		Justification: justification,
		Citations:     policy.Citations,
		CostSummary:   summary,
		BreakEven: model.BreakEven{
			Rides:      breakEvenRides,
			Assumption: "Break-even rides approximate membership fee divided by single-ride price.",
		},
		WeeklyTable: weeklyTable,
		Timeline:    rec.timeline,
		StepLogs:    rec.steps,
		PolicyMeta: model.PolicyMeta{
			PricingURL: p.PricingURL,
			CapturedAt: policy.CapturedAt,
		},
		Assumptions: assumptions,
		Stats: model.SummaryStats{
			TotalRides:     stats.TotalRides,
			AverageMinutes: stats.AvgMinutes,
			EbikeShare:     stats.EbikeShare(),
		},
		FinalAnswer: finalAnswer,
	}, nil
}

func buildJustification(stats *model.RideStats, policy *model.PolicySet, summary model.CostSummary, payTotal, memberTotal float64) []string {
	memberIncluded := policy.Value(model.MemberIncludedMinutes)
	if memberIncluded == 0 {
		memberIncluded = costmodel.MemberIncludedDefault
	}

	return []string{
		fmt.Sprintf("Membership costs %s per month and includes roughly %d-minute classic rides%s%s.",
			costmodel.FormatCurrency(policy.Value(model.MembershipPrice)),
			int(memberIncluded),
			citationRef(policy.CitationID(model.MembershipPrice)),
			citationRef(policy.CitationID(model.MemberIncludedMinutes)),
		),
		fmt.Sprintf("You took %d rides totaling %s minutes; paying per ride at %s with surcharges would cost %s%s%s.",
			int(stats.TotalRides),
			costmodel.FormatNumber(stats.ClassicMinutes+stats.EbikeMinutes),
			costmodel.FormatCurrency(policy.Value(model.SingleRidePrice)),
			costmodel.FormatCurrency(payTotal),
			citationRef(policy.CitationID(model.SingleRidePrice)),
			citationRef(policy.CitationID(model.NonMemberEbikePerMinute)),
		),
		fmt.Sprintf("With membership the month would cost %s, including e-bike minute charges of %s%s.",
			costmodel.FormatCurrency(memberTotal),
			costmodel.FormatCurrency(summary.Membership.EbikeSurcharge),
			citationRef(policy.CitationID(model.MemberEbikePerMinute)),
		),
	}
}

func citationRef(id string) string {
	if id == "" {
		return ""
	}
	return "[" + id + "]"
}

func formatBreakEven(rides *int) string {
	if rides == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *rides)
}

func formatAssumptions(assumptions []string) string {
	if len(assumptions) == 0 {
		return "None"
	}
	out := assumptions[0]
	for _, a := range assumptions[1:] {
		out += "; " + a
	}
	return out
}

// truncate caps s at n characters, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// NewDefault wires an Agent with default loader and fetcher, for callers
// that do not need custom collaborators.
func NewDefault(fetchTimeout time.Duration) (*Agent, error) {
	a, err := New(dataset.NewLoader(), pricing.NewFetcher(pricing.FetcherOptions{Timeout: fetchTimeout}), Options{})
	if err != nil {
		return nil, eris.Wrap(err, "agent: init")
	}
	return a, nil
}
