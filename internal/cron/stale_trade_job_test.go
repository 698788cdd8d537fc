package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/safetradehq/safetrade-backend/pkg/logger"
)

type fakeSweeper struct {
	batches []int
	calls   int
	err     error
}

func (f *fakeSweeper) SweepStale(ctx context.Context, batchSize int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func TestStaleTradeJobDrainsFullBatches(t *testing.T) {
	sweeper := &fakeSweeper{batches: []int{3, 3, 1}}
	job, err := NewStaleTradeJob(StaleTradeJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Sweeper:   sweeper,
		BatchSize: 3,
	})
	if err != nil {
		t.Fatalf("NewStaleTradeJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 3 {
		t.Fatalf("expected 3 sweep calls, got %d", sweeper.calls)
	}
}

func TestStaleTradeJobPropagatesErrors(t *testing.T) {
	job, err := NewStaleTradeJob(StaleTradeJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: &fakeSweeper{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewStaleTradeJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
