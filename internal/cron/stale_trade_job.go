package cron

import (
	"context"
	"fmt"

	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"gorm.io/gorm"
)

const staleSweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StaleTradeJobParams configure the stale trade sweeper.
type StaleTradeJobParams struct {
	Logger    *logger.Logger
	Sweeper   staleTradeSweeper
	BatchSize int
}

type staleTradeSweeper interface {
	SweepStale(ctx context.Context, batchSize int) (int, error)
}

// NewStaleTradeJob builds the cron job that cancels trades idle past
// the inactivity cutoff. Readers materialize the same cancellation
// lazily; the sweep keeps untouched rows from lingering forever.
func NewStaleTradeJob(params StaleTradeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("trade sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = staleSweepBatchSize
	}
	return &staleTradeJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		batch:   batch,
	}, nil
}

type staleTradeJob struct {
	logg    *logger.Logger
	sweeper staleTradeSweeper
	batch   int
}

func (j *staleTradeJob) Name() string { return "stale-trades" }

func (j *staleTradeJob) Run(ctx context.Context) error {
	total := 0
	for {
		cancelled, err := j.sweeper.SweepStale(ctx, j.batch)
		total += cancelled
		if err != nil {
			return fmt.Errorf("stale trade sweep: %w", err)
		}
		if cancelled < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"cancelled": total})
	j.logg.Info(logCtx, "stale trade sweep complete")
	return nil
}
