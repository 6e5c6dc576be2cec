package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/candidate"
	"github.com/horsie/harvester/internal/clock/system"
	"github.com/horsie/harvester/internal/extract"
	"github.com/horsie/harvester/internal/filter"
	"github.com/horsie/harvester/internal/hash/sha256"
	pubmemory "github.com/horsie/harvester/internal/publisher/memory"
	"github.com/horsie/harvester/internal/race"
	"github.com/horsie/harvester/internal/scheduler"
	"github.com/horsie/harvester/internal/storage"
	"github.com/horsie/harvester/internal/storage/memory"
)

var runAt = time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	pages map[race.CandidateID]race.Outcome
}

func (f *fakeFetcher) Fetch(_ context.Context, id race.CandidateID) race.Outcome {
	if out, ok := f.pages[id]; ok {
		return out
	}
	return race.Outcome{Kind: race.OutcomeEmpty, StatusCode: 200}
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

func smallTables() candidate.Tables {
	return candidate.Tables{
		Year:     2025,
		Venues:   []string{"05"},
		Meetings: []string{"04"},
		Days:     []string{"09"},
		Races:    []string{"10", "11", "12"},
	}
}

func fixture(t *testing.T) []byte {
	t.Helper()
	doc, err := os.ReadFile("../extract/testdata/autumn_cup.html")
	require.NoError(t, err)
	return doc
}

func newDeps(t *testing.T, fetcher race.Fetcher, store race.BlobStore) Deps {
	t.Helper()
	return Deps{
		Fetcher:   fetcher,
		Extractor: extract.New(extract.Config{}),
		Filter:    filter.New(filter.Config{}),
		Scheduler: scheduler.New(scheduler.Config{BatchSize: 2, Pause: -1}, zap.NewNop()),
		Store:     store,
		Hasher:    sha256.New(),
		Clock:     system.Fixed{At: runAt},
		IDs:       fixedIDs{id: "run-1"},
		Logger:    zap.NewNop(),
	}
}

func defaultOptions() Options {
	return Options{
		Tables:      smallTables(),
		DatasetPath: "races.json",
		SummaryPath: "summary.json",
		Topic:       "harvest-runs",
	}
}

func readObject(t *testing.T, store *memory.BlobStore, path string) []byte {
	t.Helper()
	rc, err := store.GetObject(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestRunWritesAcceptedRace(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[race.CandidateID]race.Outcome{
		"202505040911": {Kind: race.OutcomeSuccess, StatusCode: 200, Document: fixture(t)},
		"202505040912": {Kind: race.OutcomeError, StatusCode: 500, Reason: "unexpected status 500"},
	}}
	store := memory.NewBlobStore()
	runs := memory.NewRunStore()
	pub := pubmemory.New()
	deps := newDeps(t, fetcher, store)
	deps.Runs = runs
	deps.Publisher = pub

	h, err := New(deps, defaultOptions())
	require.NoError(t, err)

	ds, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Records, 1)
	rec := ds.Records[0]
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, race.CandidateID("202505040911"), rec.RaceID)
	assert.Equal(t, "Autumn Cup", rec.Title)
	assert.Equal(t, "2025-10-19", rec.Date)
	assert.Equal(t, "Tokyo", rec.Track)

	s := ds.Summary
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 1, s.TotalRaces)
	assert.Equal(t, 1, s.GradedStakes)
	assert.Equal(t, 3, s.CandidatesChecked)
	assert.Equal(t, race.OutcomeCounts{Success: 1, Empty: 1, Error: 1}, s.Outcomes)
	assert.Equal(t, map[race.RejectReason]int{race.RejectEmpty: 1, race.RejectFetchError: 1}, s.Rejections)
	require.NotNil(t, s.DateRange)
	assert.Equal(t, race.DateRange{Earliest: "2025-10-19", Latest: "2025-10-19"}, *s.DateRange)

	dataset := readObject(t, store, "races.json")
	assert.Equal(t, sha256.Sum(dataset), s.DatasetSHA256)
	assert.Equal(t, "application/json", store.ContentType("races.json"))
	var stored []race.Record
	require.NoError(t, json.Unmarshal(dataset, &stored))
	assert.Equal(t, ds.Records, stored)

	var summary race.Summary
	require.NoError(t, json.Unmarshal(readObject(t, store, "summary.json"), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, race.SummaryNote, summary.Note)

	savedSummary, savedRecords, err := runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, s.DatasetSHA256, savedSummary.DatasetSHA256)
	assert.Len(t, savedRecords, 1)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "harvest-runs", msgs[0].Topic)
}

func TestRunWithNoRacesWritesEmptyDataset(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	h, err := New(newDeps(t, &fakeFetcher{}, store), defaultOptions())
	require.NoError(t, err)

	ds, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ds.Records)
	assert.Empty(t, ds.Records)
	assert.Equal(t, 3, ds.Summary.Outcomes.Empty)

	assert.Equal(t, "[]", string(readObject(t, store, "races.json")))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(readObject(t, store, "summary.json"), &raw))
	assert.Contains(t, raw, "dateRange")
	assert.Nil(t, raw["dateRange"])
	assert.EqualValues(t, 0, raw["totalRaces"])
}

func TestRunStorageFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := &storage.MockProvider{}
	store.On("PutObject", mock.Anything, "races.json", "application/json", []byte("[]")).
		Return("", errors.New("disk full"))

	runs := memory.NewRunStore()
	deps := newDeps(t, &fakeFetcher{}, store)
	deps.Runs = runs
	h, err := New(deps, defaultOptions())
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write dataset")
	assert.Empty(t, runs.RunIDs())
	store.AssertExpectations(t)
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New()
	pub.FailWith(errors.New("topic gone"))
	deps := newDeps(t, &fakeFetcher{}, memory.NewBlobStore())
	deps.Publisher = pub

	h, err := New(deps, defaultOptions())
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pub.Messages())
}

func TestRunCanceledPersistsNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := memory.NewBlobStore()
	h, err := New(newDeps(t, &fakeFetcher{}, store), defaultOptions())
	require.NoError(t, err)

	_, err = h.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Paths())
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	deps := newDeps(t, &fakeFetcher{}, memory.NewBlobStore())

	missingStore := deps
	missingStore.Store = nil
	_, err := New(missingStore, defaultOptions())
	require.Error(t, err)

	opts := defaultOptions()
	opts.SummaryPath = ""
	_, err = New(deps, opts)
	require.Error(t, err)

	opts = defaultOptions()
	opts.Tables.Venues = nil
	_, err = New(deps, opts)
	require.Error(t, err)
}
