package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bikepass-cli/internal/agent"
	"github.com/sells-group/bikepass-cli/internal/costmodel"
	"github.com/sells-group/bikepass-cli/internal/dataset"
	"github.com/sells-group/bikepass-cli/internal/model"
	"github.com/sells-group/bikepass-cli/internal/pricing"
)

var (
	runTrips      string
	runPricingURL string
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a trip log against a pricing page",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ag, err := initAgent()
		if err != nil {
			return err
		}

		rec, err := st.CreateRun(ctx, runTrips, runPricingURL)
		if err != nil {
			return eris.Wrap(err, "create run record")
		}
		if err := st.UpdateStatus(ctx, rec.ID, model.RunStatusRunning, ""); err != nil {
			return eris.Wrap(err, "mark run running")
		}

		result, err := ag.Run(ctx, agent.Params{
			RunID:          rec.ID,
			DatasetLocator: runTrips,
			PricingURL:     runPricingURL,
		})
		if err != nil {
			if sErr := st.UpdateStatus(ctx, rec.ID, model.RunStatusFailed, err.Error()); sErr != nil {
				zap.L().Warn("failed to record run failure", zap.Error(sErr))
			}
			return eris.Wrap(err, "analysis run")
		}

		if err := st.AttachResult(ctx, rec.ID, result); err != nil {
			zap.L().Warn("failed to persist run result", zap.Error(err))
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", rec.ID),
			zap.String("decision", result.Decision),
			zap.Int("steps", result.Metrics.TotalSteps),
		)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		formatReport(os.Stdout, result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runTrips, "trips", "", "trip log location: local path, http(s):// or ftp:// URL (required)")
	runCmd.Flags().StringVar(&runPricingURL, "pricing-url", "", "operator pricing page URL (required)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result as JSON")
	_ = runCmd.MarkFlagRequired("trips")
	_ = runCmd.MarkFlagRequired("pricing-url")
	rootCmd.AddCommand(runCmd)
}

// initAgent builds an Agent from the loaded config.
func initAgent() (*agent.Agent, error) {
	fetcher := pricing.NewFetcher(pricing.FetcherOptions{
		Timeout:   cfg.Fetch.Timeout(),
		UserAgent: cfg.Fetch.UserAgent,
	})
	ag, err := agent.New(dataset.NewLoader(), fetcher, agent.Options{TopK: cfg.Retriever.TopK})
	if err != nil {
		return nil, eris.Wrap(err, "init agent")
	}
	return ag, nil
}

// formatReport writes a human-readable summary of a run result to w.
func formatReport(out io.Writer, r *model.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Decision:\t%s\n", r.Decision)
	_, _ = fmt.Fprintf(w, "Pay per use:\t%s\n", costmodel.FormatCurrency(r.CostSummary.PayPerUse.Total))
	_, _ = fmt.Fprintf(w, "Membership:\t%s\n", costmodel.FormatCurrency(r.CostSummary.Membership.Total))
	if r.BreakEven.Rides != nil {
		_, _ = fmt.Fprintf(w, "Break-even rides:\t%d\n", *r.BreakEven.Rides)
	} else {
		_, _ = fmt.Fprintf(w, "Break-even rides:\tn/a\n")
	}
	_ = w.Flush()

	if len(r.Justification) > 0 {
		_, _ = fmt.Fprintln(out, "\nWhy:")
		for _, line := range r.Justification {
			_, _ = fmt.Fprintf(out, "  - %s\n", line)
		}
	}

	if len(r.WeeklyTable) > 0 {
		_, _ = fmt.Fprintln(out, "\nWeekly costs:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "  WEEK\tRIDES\tPAY PER USE\tMEMBERSHIP")
		for _, wk := range r.WeeklyTable {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\n",
				wk.WeekStart,
				wk.Rides,
				wk.PayPerUseCost,
				wk.MembershipCost,
			)
		}
		_ = tw.Flush()
	}

	if len(r.Citations) > 0 {
		_, _ = fmt.Fprintln(out, "\nCitations:")
		for _, c := range r.Citations {
			_, _ = fmt.Fprintf(out, "  [%s] %s\n", c.ID, c.Text)
		}
	}

	if len(r.Assumptions) > 0 {
		_, _ = fmt.Fprintln(out, "\nAssumptions:")
		for _, a := range r.Assumptions {
			_, _ = fmt.Fprintf(out, "  - %s\n", a)
		}
	}
}
