// Package harvest wires one end-to-end run: generate, fetch, extract, filter, aggregate, persist.
package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/aggregate"
	"github.com/horsie/harvester/internal/candidate"
	"github.com/horsie/harvester/internal/filter"
	"github.com/horsie/harvester/internal/metrics"
	"github.com/horsie/harvester/internal/race"
	"github.com/horsie/harvester/internal/scheduler"
)

const (
	tracerName      = "github.com/horsie/harvester/internal/harvest"
	jsonContentType = "application/json"
	// debugCandidates is how many leading candidates get a per-item debug line.
	debugCandidates = 3
)

// Deps are the collaborators of a run. Runs and Publisher are optional.
type Deps struct {
	Fetcher   race.Fetcher
	Extractor filter.Extractor
	Filter    *filter.Filter
	Scheduler *scheduler.Scheduler
	Store     race.BlobStore
	Runs      race.RunStore
	Publisher race.Publisher
	Hasher    race.Hasher
	Clock     race.Clock
	IDs       race.IDGenerator
	Logger    *zap.Logger
}

// Options name the candidate space and the run's outputs.
type Options struct {
	Tables         candidate.Tables
	DatasetPath    string
	SummaryPath    string
	Topic          string
	PushgatewayURL string
	MetricsJob     string
}

// Harvester executes runs.
type Harvester struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New validates deps and builds a Harvester.
func New(deps Deps, opts Options) (*Harvester, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Filter == nil:
		return nil, errors.New("filter is required")
	case deps.Scheduler == nil:
		return nil, errors.New("scheduler is required")
	case deps.Store == nil:
		return nil, errors.New("blob store is required")
	case deps.Hasher == nil:
		return nil, errors.New("hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	}
	if opts.DatasetPath == "" || opts.SummaryPath == "" {
		return nil, errors.New("dataset and summary paths are required")
	}
	if err := opts.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate tables: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{deps: deps, opts: opts, logger: logger.Named("harvest")}, nil
}

// Run performs one harvest and persists its artifacts. Per-candidate failures are counted, never returned.
// Errors are returned only for cancellation and persistence failures.
func (h *Harvester) Run(ctx context.Context) (ds aggregate.Dataset, err error) {
	runID, err := h.deps.IDs.NewID()
	if err != nil {
		return aggregate.Dataset{}, fmt.Errorf("generate run id: %w", err)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "harvest.run")
	span.SetAttributes(attribute.String("harvest.run_id", runID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("harvest.races", ds.Summary.TotalRaces),
				attribute.Int("harvest.candidates_checked", ds.Summary.CandidatesChecked),
			)
		}
		span.End()
	}()
	logger := h.logger.With(zap.String("run_id", runID))
	started := h.deps.Clock.Now()

	ids := candidate.Generate(h.opts.Tables)
	window := h.deps.Filter.Window()
	logger.Info("harvest starting",
		zap.Int("year", h.opts.Tables.Year),
		zap.Int("candidates", len(ids)),
		zap.Int("max_candidates", h.deps.Scheduler.Config().MaxCandidates),
		zap.Duration("lookback", window.Back),
		zap.Duration("lookahead", window.Ahead),
	)

	var seen atomic.Int64
	process := func(ctx context.Context, id race.CandidateID) race.Result {
		outcome := h.deps.Fetcher.Fetch(ctx, id)
		res := filter.Evaluate(id, outcome, h.deps.Extractor, h.deps.Filter, started)
		if seen.Add(1) <= debugCandidates {
			logger.Debug("candidate evaluated",
				zap.String("race_id", string(id)),
				zap.String("url", outcome.URL),
				zap.String("outcome", string(outcome.Kind)),
				zap.Int("status", outcome.StatusCode),
				zap.Int("bytes", len(outcome.Document)),
				zap.String("reason", string(res.Reason)),
			)
		}
		return res
	}

	agg := aggregate.New(logger)
	if err := h.deps.Scheduler.Run(ctx, ids, process, func(b scheduler.Batch) {
		agg.Add(b.Results...)
	}); err != nil {
		return aggregate.Dataset{}, fmt.Errorf("run scheduler: %w", err)
	}

	ds = agg.Finalize(h.deps.Clock.Now())
	ds.Summary.RunID = runID
	if err := h.persist(ctx, &ds); err != nil {
		return ds, err
	}

	h.notify(ctx, logger, ds.Summary)
	metrics.SetLastRunRaces(ds.Summary.TotalRaces)
	if err := metrics.Push(ctx, h.opts.PushgatewayURL, h.opts.MetricsJob); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Int("races", ds.Summary.TotalRaces),
		zap.Int("graded", ds.Summary.GradedStakes),
		zap.Int("checked", ds.Summary.CandidatesChecked),
		zap.Int("success", ds.Summary.Outcomes.Success),
		zap.Int("empty", ds.Summary.Outcomes.Empty),
		zap.Int("error", ds.Summary.Outcomes.Error),
		zap.Duration("elapsed", h.deps.Clock.Now().Sub(started)),
	}
	if ds.Summary.TotalRaces == 0 {
		logger.Warn("harvest found no races", fields...)
	} else {
		logger.Info("harvest complete", fields...)
	}
	return ds, nil
}

// persist writes the dataset, then the summary, then the optional run row.
func (h *Harvester) persist(ctx context.Context, ds *aggregate.Dataset) error {
	records, err := json.MarshalIndent(ds.Records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	digest, err := h.deps.Hasher.Hash(records)
	if err != nil {
		return fmt.Errorf("hash dataset: %w", err)
	}
	ds.Summary.DatasetSHA256 = digest

	datasetURI, err := h.deps.Store.PutObject(ctx, h.opts.DatasetPath, jsonContentType, bytes.NewReader(records))
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	summary, err := json.MarshalIndent(ds.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	summaryURI, err := h.deps.Store.PutObject(ctx, h.opts.SummaryPath, jsonContentType, bytes.NewReader(summary))
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	h.logger.Info("artifacts written",
		zap.String("dataset", datasetURI),
		zap.String("summary", summaryURI),
		zap.String("sha256", digest),
	)

	if h.deps.Runs != nil {
		if err := h.deps.Runs.SaveRun(ctx, ds.Summary, ds.Records); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	return nil
}

// notify publishes the summary. Failures are logged only.
func (h *Harvester) notify(ctx context.Context, logger *zap.Logger, summary race.Summary) {
	if h.deps.Publisher == nil || h.opts.Topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	id, err := h.deps.Publisher.Publish(ctx, h.opts.Topic, summary)
	if err != nil {
		logger.Warn("publish run summary failed", zap.String("topic", h.opts.Topic), zap.Error(err))
		return
	}
	logger.Info("run summary published", zap.String("topic", h.opts.Topic), zap.String("message_id", id))
}
