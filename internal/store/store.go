// Package store persists run history: one record per analysis run with its
// status, inputs, and the serialized result. Two backends are provided,
// SQLite for single-node use and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Store defines the run-history persistence interface.
type Store interface {
	CreateRun(ctx context.Context, dataset, pricingURL string) (*model.RunRecord, error)
	UpdateStatus(ctx context.Context, runID string, status model.RunStatus, runErr string) error
	AttachResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50
