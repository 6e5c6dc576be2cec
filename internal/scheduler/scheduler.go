// Package scheduler drives candidates through the pipeline in fixed-size concurrent batches.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/horsie/harvester/internal/metrics"
	"github.com/horsie/harvester/internal/race"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultBatchSize     = 15
	DefaultMaxCandidates = 3000
	DefaultPause         = 400 * time.Millisecond
	DefaultLogEvery      = 10
)

// Config controls batching.
type Config struct {
	BatchSize     int
	MaxCandidates int
	// Pause between batches; negative disables it.
	Pause time.Duration
	// LogEvery emits a progress line every N batches.
	LogEvery int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	switch {
	case c.Pause == 0:
		c.Pause = DefaultPause
	case c.Pause < 0:
		c.Pause = 0
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	return c
}

// ProcessFunc runs the full pipeline for one candidate. It must not return errors; failures are Results.
type ProcessFunc func(ctx context.Context, id race.CandidateID) race.Result

// Batch is one settled group of results, in candidate order.
type Batch struct {
	Index    int
	Results  []race.Result
	Duration time.Duration
}

// pauseController abstracts the wait between batches.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Scheduler runs batches strictly one after another.
type Scheduler struct {
	cfg    Config
	pauser pauseController
	logger *zap.Logger
}

// New builds a Scheduler.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		pauser: &timerPauseController{},
		logger: logger.Named("scheduler"),
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Run processes at most MaxCandidates ids. onBatch is called on the calling goroutine after each batch settles.
// It returns the context error if canceled before the sequence is exhausted.
func (s *Scheduler) Run(ctx context.Context, ids []race.CandidateID, process ProcessFunc, onBatch func(Batch)) error {
	if len(ids) > s.cfg.MaxCandidates {
		ids = ids[:s.cfg.MaxCandidates]
	}
	total := len(ids)
	batches := (total + s.cfg.BatchSize - 1) / s.cfg.BatchSize
	s.logger.Info("starting batches",
		zap.Int("candidates", total),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Int("batches", batches),
	)

	for index := 0; index < batches; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run batches: %w", err)
		}
		start := index * s.cfg.BatchSize
		end := min(start+s.cfg.BatchSize, total)

		began := time.Now()
		results := s.runBatch(ctx, ids[start:end], process)
		elapsed := time.Since(began)
		metrics.ObserveBatch(elapsed)

		onBatch(Batch{Index: index, Results: results, Duration: elapsed})

		if (index+1)%s.cfg.LogEvery == 0 {
			s.logger.Info("batch progress",
				zap.Int("batch", index+1),
				zap.Int("batches", batches),
				zap.Int("processed", end),
			)
		}
		if index < batches-1 {
			s.pauser.Pause(ctx, s.cfg.Pause)
		}
	}
	return nil
}

func (s *Scheduler) runBatch(ctx context.Context, ids []race.CandidateID, process ProcessFunc) []race.Result {
	results := make([]race.Result, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("pipeline panicked", zap.String("race_id", string(id)), zap.Any("panic", r))
					results[i] = race.Result{ID: id, Outcome: race.OutcomeError, Reason: race.RejectPanic}
				}
			}()
			results[i] = process(ctx, id)
			return nil
		})
	}
	// Every task returns nil; per-candidate failures live in results.
	_ = g.Wait()
	return results
}
