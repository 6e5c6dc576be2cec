// Package race defines the core types shared across the harvester subsystems.
package race

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CandidateID is a guessed race identifier: YYYY + venue + meeting + day + race, two digits each after the year.
type CandidateID string

// Offsets of the fixed-width segments inside a CandidateID.
const (
	candidateIDLen = 12
	yearEnd        = 4
	venueEnd       = 6
	meetingEnd     = 8
	dayEnd         = 10
)

// NewCandidateID concatenates already-formatted segments.
func NewCandidateID(year int, venue, meeting, day, raceNo string) CandidateID {
	return CandidateID(strconv.Itoa(year) + venue + meeting + day + raceNo)
}

// Valid reports whether the identifier is twelve ASCII digits.
func (c CandidateID) Valid() bool {
	if len(c) != candidateIDLen {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < '0' || c[i] > '9' {
			return false
		}
	}
	return true
}

// Year returns the four-digit year segment.
func (c CandidateID) Year() string { return c.segment(0, yearEnd) }

// Venue returns the two-digit venue code.
func (c CandidateID) Venue() string { return c.segment(yearEnd, venueEnd) }

// Meeting returns the two-digit meeting number.
func (c CandidateID) Meeting() string { return c.segment(venueEnd, meetingEnd) }

// Day returns the two-digit day number.
func (c CandidateID) Day() string { return c.segment(meetingEnd, dayEnd) }

// RaceNumber parses the race-in-day segment. Zero means the identifier is malformed.
func (c CandidateID) RaceNumber() int {
	n, err := strconv.Atoi(c.segment(dayEnd, candidateIDLen))
	if err != nil {
		return 0
	}
	return n
}

func (c CandidateID) segment(from, to int) string {
	if len(c) < to {
		return ""
	}
	return string(c[from:to])
}

// OutcomeKind classifies a single fetch.
type OutcomeKind string

// Fetch outcome values.
const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeEmpty   OutcomeKind = "empty"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the transient result of fetching one candidate page.
type Outcome struct {
	Kind       OutcomeKind
	URL        string
	StatusCode int
	Document   []byte
	Reason     string
	Duration   time.Duration
}

// RejectReason names the check that dropped a candidate. Reasons are counted, never surfaced per item.
type RejectReason string

// Rejection categories in pipeline order.
const (
	RejectFetchError RejectReason = "fetch_error"
	RejectEmpty      RejectReason = "empty"
	RejectParse      RejectReason = "parse"
	RejectTitle      RejectReason = "title"
	RejectDate       RejectReason = "date"
	RejectRunners    RejectReason = "runners"
	RejectWindow     RejectReason = "window"
	RejectPanic      RejectReason = "panic"
)

// Grade values.
const (
	GradeNone = ""
	GradeG1   = "G1"
	GradeG2   = "G2"
	GradeG3   = "G3"
)

// Surface values.
const (
	SurfaceTurf = "Turf"
	SurfaceDirt = "Dirt"
)

// Unknown is the sentinel used for lookups and fields the page did not provide.
const Unknown = "Unknown"

// DateLayout is the ISO calendar date format used in the dataset.
const DateLayout = "2006-01-02"

// Runner is one entry on a race card.
type Runner struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Jockey string `json:"jockey"`
}

// Record is a single accepted race as persisted in the dataset.
type Record struct {
	ID         int         `json:"id"`
	RaceID     CandidateID `json:"raceId"`
	Title      string      `json:"title"`
	RaceNumber int         `json:"raceNumber"`
	Grade      string      `json:"grade"`
	Date       string      `json:"date"`
	Track      string      `json:"track"`
	Distance   string      `json:"distance"`
	Surface    string      `json:"surface"`
	Horses     []Runner    `json:"horses"`
	VideoURL   string      `json:"videoUrl"`
	ResultsURL string      `json:"resultsUrl"`
	EntriesURL string      `json:"entriesUrl"`
}

// Graded reports whether the race carries a G1/G2/G3 marker.
func (r Record) Graded() bool {
	return r.Grade != GradeNone
}

// DateRange bounds the accepted records' dates.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// OutcomeCounts tallies fetch outcomes over a run.
type OutcomeCounts struct {
	Success int `json:"success"`
	Empty   int `json:"empty"`
	Error   int `json:"error"`
}

// Summary is the run metadata persisted next to the dataset.
type Summary struct {
	RunID             string               `json:"runId"`
	LastUpdated       time.Time            `json:"lastUpdated"`
	TotalRaces        int                  `json:"totalRaces"`
	GradedStakes      int                  `json:"gradedStakes"`
	DateRange         *DateRange           `json:"dateRange"`
	Note              string               `json:"note"`
	CandidatesChecked int                  `json:"candidatesChecked"`
	Outcomes          OutcomeCounts        `json:"outcomes"`
	Rejections        map[RejectReason]int `json:"rejections"`
	ByTrack           map[string]int       `json:"byTrack"`
	ByDate            map[string]int       `json:"byDate"`
	DatasetSHA256     string               `json:"datasetSha256,omitempty"`
}

// SummaryNote is carried in every summary for the presentation layer.
const SummaryNote = "Entry lists only - no spoilers!"

// Result is the tagged output of one candidate's Fetch→Extract→Filter pipeline.
type Result struct {
	ID      CandidateID
	Outcome OutcomeKind
	Record  *Record
	Reason  RejectReason
}

// Accepted reports whether the pipeline produced a record.
func (r Result) Accepted() bool {
	return r.Record != nil
}

const (
	entriesPath = "/race/shutuba.html"
	resultsPath = "/race/result.html"
)

// EntriesURL is the entry-list page for the identifier under base.
func (c CandidateID) EntriesURL(base string) string {
	return pageURL(base, entriesPath, c)
}

// ResultsURL is the results page for the identifier under base.
func (c CandidateID) ResultsURL(base string) string {
	return pageURL(base, resultsPath, c)
}

func pageURL(base, path string, id CandidateID) string {
	return strings.TrimRight(base, "/") + path + "?race_id=" + url.QueryEscape(string(id))
}
