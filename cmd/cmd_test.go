package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/candidate"
	"github.com/horsie/harvester/internal/clock/system"
	"github.com/horsie/harvester/internal/config"
	"github.com/horsie/harvester/internal/extract"
	"github.com/horsie/harvester/internal/filter"
	"github.com/horsie/harvester/internal/harvest"
	"github.com/horsie/harvester/internal/hash/sha256"
	"github.com/horsie/harvester/internal/id/uuid"
	"github.com/horsie/harvester/internal/race"
	"github.com/horsie/harvester/internal/scheduler"
	"github.com/horsie/harvester/internal/storage"
	"github.com/horsie/harvester/internal/storage/memory"
)

type fakeApp struct {
	cfg       config.Config
	store     *memory.BlobStore
	harvester *harvest.Harvester
	buildErr  error
	closed    bool
}

func (f *fakeApp) Close()                    { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger       { return zap.NewNop() }
func (f *fakeApp) Config() config.Config     { return f.cfg }
func (f *fakeApp) Storage() storage.Provider { return f.store }
func (f *fakeApp) Harvester() (*harvest.Harvester, error) {
	return f.harvester, f.buildErr
}

// execute runs the root command with a fake app and closes it the way Execute does.
// Not parallel: it swaps package state.
func execute(t *testing.T, fake *fakeApp, args ...string) string {
	t.Helper()
	out, err := executeErr(t, fake, args...)
	require.NoError(t, err)
	return out
}

func executeErr(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	origApp, origNow := newApp, clockNow
	t.Cleanup(func() { newApp, clockNow = origApp, origNow })
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	clockNow = func() time.Time { return time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC) }

	var out bytes.Buffer
	holder := &appHolder{}
	root := newRootCmd(holder)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file="}, args...))
	err := root.ExecuteContext(context.Background())
	holder.Close()
	return out.String(), err
}

func TestCandidatesCommand(t *testing.T) {
	fake := &fakeApp{store: memory.NewBlobStore()}
	out := execute(t, fake, "candidates", "-n", "2")

	assert.Contains(t, out, "year 2025: 7200 candidates (3000 probed per run)")
	assert.Contains(t, out, "202505051212  Tokyo R12")
	assert.Contains(t, out, "202505051211  Tokyo R11")
	assert.NotContains(t, out, "202505051210")
	assert.True(t, fake.closed)
}

func TestResolveAppMissing(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, race.CandidateID) race.Outcome {
	return race.Outcome{Kind: race.OutcomeEmpty, StatusCode: 200}
}

func TestRunCommandWithNoRaces(t *testing.T) {
	store := memory.NewBlobStore()
	h, err := harvest.New(harvest.Deps{
		Fetcher:   emptyFetcher{},
		Extractor: extract.New(extract.Config{}),
		Filter:    filter.New(filter.Config{}),
		Scheduler: scheduler.New(scheduler.Config{Pause: -1}, zap.NewNop()),
		Store:     store,
		Hasher:    sha256.New(),
		Clock:     system.New(),
		IDs:       uuid.New(),
	}, harvest.Options{
		Tables: candidate.Tables{
			Year: 2025, Venues: []string{"05"}, Meetings: []string{"04"}, Days: []string{"09"}, Races: []string{"11"},
		},
		DatasetPath: "races.json",
		SummaryPath: "summary.json",
	})
	require.NoError(t, err)

	out := execute(t, &fakeApp{store: store, harvester: h}, "run")

	assert.Contains(t, out, "Races: 0 (graded stakes: 0) from 1 candidates")
	assert.Contains(t, out, "WARNING: no races found (success 0, empty 1, error 0)")
	assert.ElementsMatch(t, []string{"races.json", "summary.json"}, store.Paths())
}

func TestFailedCommandStillClosesApp(t *testing.T) {
	fake := &fakeApp{store: memory.NewBlobStore(), buildErr: errors.New("bad tables")}

	_, err := executeErr(t, fake, "run")

	require.ErrorContains(t, err, "bad tables")
	assert.True(t, fake.closed)
}
