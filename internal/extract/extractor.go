// Package extract turns a fetched entry-list page into a race.Record.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/horsie/harvester/internal/candidate"
	"github.com/horsie/harvester/internal/race"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultVideoURL = "https://japanracing.jp/en/"
	DefaultBaseURL  = "https://en.netkeiba.com"
)

// DefaultGenericTitles are site names that mean the page carried no race title.
var DefaultGenericTitles = []string{"netkeiba"}

// Config controls the links stamped on each record and the generic-title list.
type Config struct {
	BaseURL       string
	VideoURL      string
	GenericTitles []string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.VideoURL == "" {
		c.VideoURL = DefaultVideoURL
	}
	if len(c.GenericTitles) == 0 {
		c.GenericTitles = DefaultGenericTitles
	}
	return c
}

// Rejection is returned when a page cannot yield a record.
type Rejection struct {
	Reason race.RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("extract rejected (%s): %s", r.Reason, r.Detail)
}

func reject(reason race.RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf maps an extraction error to its rejection reason.
func ReasonOf(err error) race.RejectReason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return race.RejectParse
}

// Extractor is stateless and safe for concurrent use.
type Extractor struct {
	cfg Config
}

// New builds an Extractor.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg.withDefaults()}
}

// Extract parses doc as the entry list for id. The record's ID is left zero for the aggregator to assign.
func (e *Extractor) Extract(id race.CandidateID, doc []byte) (race.Record, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return race.Record{}, reject(race.RejectParse, "parse document: %v", err)
	}

	meta, rawTitle := pickTitle(page)
	if len([]rune(rawTitle)) < minTitleLen || e.generic(rawTitle) {
		return race.Record{}, reject(race.RejectTitle, "no race title in %q", rawTitle)
	}
	title := cleanTitle(rawTitle)
	if title == "" {
		return race.Record{}, reject(race.RejectTitle, "title %q is only a grade marker", rawTitle)
	}

	bodyText := page.Find("body").Text()
	date, ok := resolveDate(bodyText, meta, rawTitle)
	if !ok {
		return race.Record{}, reject(race.RejectDate, "no date in title %q or body", rawTitle)
	}
	distance, surface := parseCourse(bodyText)

	return race.Record{
		RaceID:     id,
		Title:      title,
		RaceNumber: id.RaceNumber(),
		Grade:      parseGrade(meta, rawTitle),
		Date:       date.Format(race.DateLayout),
		Track:      candidate.TrackName(id.Venue()),
		Distance:   distance,
		Surface:    surface,
		Horses:     parseRunners(page),
		VideoURL:   e.cfg.VideoURL,
		ResultsURL: id.ResultsURL(e.cfg.BaseURL),
		EntriesURL: id.EntriesURL(e.cfg.BaseURL),
	}, nil
}

func (e *Extractor) generic(title string) bool {
	lower := strings.ToLower(title)
	for _, name := range e.cfg.GenericTitles {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}
