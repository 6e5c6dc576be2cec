package filter

import (
	"time"

	"github.com/horsie/harvester/internal/extract"
	"github.com/horsie/harvester/internal/race"
)

// Extractor turns a fetched document into a record.
type Extractor interface {
	Extract(id race.CandidateID, doc []byte) (race.Record, error)
}

// Evaluate runs one fetched candidate through extraction and the checks.
func Evaluate(id race.CandidateID, outcome race.Outcome, ex Extractor, f *Filter, now time.Time) race.Result {
	res := race.Result{ID: id, Outcome: outcome.Kind}

	switch outcome.Kind {
	case race.OutcomeSuccess:
	case race.OutcomeEmpty:
		res.Reason = race.RejectEmpty
		return res
	default:
		res.Outcome = race.OutcomeError
		res.Reason = race.RejectFetchError
		return res
	}

	rec, err := ex.Extract(id, outcome.Document)
	if err != nil {
		res.Reason = extract.ReasonOf(err)
		return res
	}
	if v := f.Check(rec, now); !v.Accepted {
		res.Reason = v.Reason
		return res
	}
	res.Record = &rec
	return res
}
