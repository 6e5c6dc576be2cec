// Package aggregate accumulates pipeline results into the final dataset and run summary.
package aggregate

import (
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/metrics"
	"github.com/horsie/harvester/internal/race"
)

// Dataset is the finalized output of a run.
type Dataset struct {
	Records []race.Record
	Summary race.Summary
}

// Aggregator is mutated only from the scheduler's batch callback and is not safe for concurrent use.
type Aggregator struct {
	records    []race.Record
	checked    int
	outcomes   race.OutcomeCounts
	rejections map[race.RejectReason]int
	logger     *zap.Logger
}

// New builds an empty Aggregator.
func New(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		records:    make([]race.Record, 0),
		rejections: make(map[race.RejectReason]int),
		logger:     logger.Named("aggregate"),
	}
}

// Add folds results in order. Accepted records get sequential ids starting at 1.
func (a *Aggregator) Add(results ...race.Result) {
	for _, res := range results {
		a.checked++
		switch res.Outcome {
		case race.OutcomeSuccess:
			a.outcomes.Success++
		case race.OutcomeEmpty:
			a.outcomes.Empty++
		default:
			a.outcomes.Error++
		}

		if !res.Accepted() {
			a.rejections[res.Reason]++
			metrics.ObserveRejection(string(res.Reason))
			continue
		}

		rec := *res.Record
		rec.ID = len(a.records) + 1
		rec.Horses = slices.Clone(rec.Horses)
		a.records = append(a.records, rec)
		metrics.ObserveAccepted()
		if rec.ID == 1 {
			a.logger.Debug("first race found",
				zap.String("race_id", string(rec.RaceID)),
				zap.String("title", rec.Title),
				zap.String("date", rec.Date),
			)
		}
	}
}

// Accepted returns how many records have been kept so far.
func (a *Aggregator) Accepted() int {
	return len(a.records)
}

// Checked returns how many results have been folded so far.
func (a *Aggregator) Checked() int {
	return a.checked
}

// Finalize sorts records by date, newest first, keeping discovery order for ties, and derives the summary.
// RunID and DatasetSHA256 are left for the caller.
func (a *Aggregator) Finalize(now time.Time) Dataset {
	records := slices.Clone(a.records)
	slices.SortStableFunc(records, func(x, y race.Record) int {
		return strings.Compare(y.Date, x.Date)
	})

	summary := race.Summary{
		LastUpdated:       now.UTC(),
		TotalRaces:        len(records),
		Note:              race.SummaryNote,
		CandidatesChecked: a.checked,
		Outcomes:          a.outcomes,
		Rejections:        make(map[race.RejectReason]int, len(a.rejections)),
		ByTrack:           make(map[string]int),
		ByDate:            make(map[string]int),
	}
	for reason, n := range a.rejections {
		summary.Rejections[reason] = n
	}
	for _, rec := range records {
		if rec.Graded() {
			summary.GradedStakes++
		}
		summary.ByTrack[rec.Track]++
		summary.ByDate[rec.Date]++
	}
	if len(records) > 0 {
		summary.DateRange = &race.DateRange{
			Earliest: records[len(records)-1].Date,
			Latest:   records[0].Date,
		}
	}
	return Dataset{Records: records, Summary: summary}
}
