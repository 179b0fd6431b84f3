package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bikepass-cli/internal/agent"
	"github.com/sells-group/bikepass-cli/internal/model"
	"github.com/sells-group/bikepass-cli/internal/store"
)

var (
	batchManifest    string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze many trip logs from a manifest file",
	Long:  "Reads a CSV manifest with trips and pricing_url columns and runs each analysis concurrently, recording every run in the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		jobs, err := loadManifest(batchManifest)
		if err != nil {
			return err
		}

		return processBatch(ctx, jobs, batchLimit, batchConcurrency, st, ag)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "CSV manifest with trips and pricing_url columns (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of manifest rows to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "max concurrent analyses")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is one manifest row.
type batchJob struct {
	Trips      string
	PricingURL string
}

// loadManifest parses a CSV manifest. The header row must contain trips and
// pricing_url columns, in any order; extra columns are ignored.
func loadManifest(path string) ([]batchJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open manifest")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read manifest header")
	}

	tripsIdx, urlIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "trips":
			tripsIdx = i
		case "pricing_url":
			urlIdx = i
		}
	}
	if tripsIdx < 0 || urlIdx < 0 {
		return nil, eris.New("batch: manifest must have trips and pricing_url columns")
	}

	var jobs []batchJob
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "batch: read manifest row")
		}
		if tripsIdx >= len(row) || urlIdx >= len(row) {
			continue
		}
		job := batchJob{
			Trips:      strings.TrimSpace(row[tripsIdx]),
			PricingURL: strings.TrimSpace(row[urlIdx]),
		}
		if job.Trips == "" || job.PricingURL == "" {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// processBatch applies limit, then runs the jobs concurrently. Individual
// failures are recorded in the store and do not abort the batch.
func processBatch(ctx context.Context, jobs []batchJob, limit, concurrency int, st store.Store, ag *agent.Agent) error {
	if len(jobs) == 0 {
		zap.L().Info("no manifest rows to process")
		return nil
	}

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.String("trips", job.Trips))

			rec, err := st.CreateRun(gctx, job.Trips, job.PricingURL)
			if err != nil {
				failed.Add(1)
				log.Error("create run record failed", zap.Error(err))
				return nil
			}
			if err := st.UpdateStatus(gctx, rec.ID, model.RunStatusRunning, ""); err != nil {
				log.Warn("failed to mark run running", zap.Error(err))
			}

			result, err := ag.Run(gctx, agent.Params{
				RunID:          rec.ID,
				DatasetLocator: job.Trips,
				PricingURL:     job.PricingURL,
			})
			if err != nil {
				failed.Add(1)
				log.Error("analysis failed", zap.Error(err))
				if sErr := st.UpdateStatus(gctx, rec.ID, model.RunStatusFailed, err.Error()); sErr != nil {
					log.Warn("failed to record run failure", zap.Error(sErr))
				}
				return nil // don't abort batch on individual failure
			}

			if err := st.AttachResult(gctx, rec.ID, result); err != nil {
				log.Warn("failed to persist run result", zap.Error(err))
			}

			succeeded.Add(1)
			log.Info("analysis complete",
				zap.String("run_id", rec.ID),
				zap.String("decision", result.Decision),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
