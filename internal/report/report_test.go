package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horsie/harvester/internal/aggregate"
	"github.com/horsie/harvester/internal/race"
)

func TestRenderEmptyWarns(t *testing.T) {
	t.Parallel()

	ds := aggregate.New(nil).Finalize(time.Now())
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, ds))

	out := buf.String()
	assert.Contains(t, out, "Races: 0")
	assert.Contains(t, out, "WARNING: no races found")
	assert.NotContains(t, out, "Track")
}

func TestRenderTables(t *testing.T) {
	t.Parallel()

	agg := aggregate.New(nil)
	for i := 0; i < 20; i++ {
		track := "Tokyo"
		if i%4 == 0 {
			track = "Kyoto"
		}
		id := race.CandidateID(fmt.Sprintf("2025050401%02d", i+1))
		agg.Add(race.Result{ID: id, Outcome: race.OutcomeSuccess, Record: &race.Record{
			RaceID:     id,
			Title:      fmt.Sprintf("Race %02d", i+1),
			RaceNumber: i%12 + 1,
			Date:       fmt.Sprintf("2025-10-%02d", i%5+10),
			Track:      track,
			Distance:   "1800m",
			Surface:    race.SurfaceTurf,
			Grade:      race.GradeNone,
		}})
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, agg.Finalize(time.Now())))

	out := buf.String()
	assert.Contains(t, out, "Races: 20")
	assert.Contains(t, out, "2025-10-10 to 2025-10-14")
	assert.Less(t, strings.Index(out, "Tokyo"), strings.Index(out, "Kyoto"), "tracks are ordered by count")
	assert.Equal(t, SampleSize, strings.Count(out, "1800m Turf"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRenderWriteError(t *testing.T) {
	t.Parallel()

	err := Render(failingWriter{}, aggregate.New(nil).Finalize(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report header")
}
