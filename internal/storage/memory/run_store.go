package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/horsie/harvester/internal/race"
)

type storedRun struct {
	summary race.Summary
	records []race.Record
}

// RunStore keeps finished runs in-memory for development/testing.
type RunStore struct {
	mu    sync.RWMutex
	order []string
	runs  map[string]storedRun
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]storedRun)}
}

// SaveRun stores a copy of the summary and records under the summary's run id.
func (s *RunStore) SaveRun(_ context.Context, summary race.Summary, records []race.Record) error {
	if summary.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[summary.RunID]; exists {
		return errors.New("run already exists")
	}
	s.runs[summary.RunID] = storedRun{summary: summary, records: cloneRecords(records)}
	s.order = append(s.order, summary.RunID)
	return nil
}

// GetRun fetches a run by id.
func (s *RunStore) GetRun(_ context.Context, runID string) (race.Summary, []race.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return race.Summary{}, nil, errors.New("run not found")
	}
	return run.summary, cloneRecords(run.records), nil
}

// RunIDs lists stored runs in save order.
func (s *RunStore) RunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func cloneRecords(records []race.Record) []race.Record {
	out := make([]race.Record, len(records))
	for i, rec := range records {
		rec.Horses = slices.Clone(rec.Horses)
		out[i] = rec
	}
	return out
}
