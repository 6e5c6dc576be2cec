// Package report renders a human-readable run breakdown.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/horsie/harvester/internal/aggregate"
	"github.com/horsie/harvester/internal/race"
)

// SampleSize is how many of the most recent races are listed.
const SampleSize = 15

type bucket struct {
	key   string
	count int
}

// Render writes the run summary, per-track and per-date tables, and a sample of recent races.
func Render(w io.Writer, ds aggregate.Dataset) error {
	s := ds.Summary
	if _, err := fmt.Fprintf(w, "Races: %d (graded stakes: %d) from %d candidates\n",
		s.TotalRaces, s.GradedStakes, s.CandidatesChecked); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	if len(ds.Records) == 0 {
		_, err := fmt.Fprintf(w,
			"WARNING: no races found (success %d, empty %d, error %d)\n"+
				"WARNING: the site may be down, the page layout may have changed, or no races fall in the window\n",
			s.Outcomes.Success, s.Outcomes.Empty, s.Outcomes.Error)
		if err != nil {
			return fmt.Errorf("write report warning: %w", err)
		}
		return nil
	}

	if s.DateRange != nil {
		if _, err := fmt.Fprintf(w, "Dates: %s to %s\n", s.DateRange.Earliest, s.DateRange.Latest); err != nil {
			return fmt.Errorf("write report range: %w", err)
		}
	}

	tracks := buckets(s.ByTrack)
	slices.SortFunc(tracks, func(a, b bucket) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.key, b.key))
	})
	render(w, table.Row{"Track", "Races"}, tracks)

	dates := buckets(s.ByDate)
	slices.SortFunc(dates, func(a, b bucket) int { return cmp.Compare(a.key, b.key) })
	render(w, table.Row{"Date", "Races"}, dates)

	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Track", "R", "Race", "Grade", "Course", "Runners"})
	for _, rec := range ds.Records[:min(SampleSize, len(ds.Records))] {
		t.AppendRow(table.Row{rec.Date, rec.Track, rec.RaceNumber, rec.Title, gradeLabel(rec), rec.Distance + " " + rec.Surface, len(rec.Horses)})
	}
	t.Render()
	return nil
}

func buckets(counts map[string]int) []bucket {
	out := make([]bucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, bucket{key: k, count: n})
	}
	return out
}

func render(w io.Writer, header table.Row, rows []bucket) {
	t := newTable(w)
	t.AppendHeader(header)
	for _, b := range rows {
		t.AppendRow(table.Row{b.key, b.count})
	}
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func gradeLabel(rec race.Record) string {
	if !rec.Graded() {
		return "-"
	}
	return rec.Grade
}
