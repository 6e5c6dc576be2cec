// Package filter decides whether an extracted record belongs in the dataset.
package filter

import (
	"strings"
	"time"

	"github.com/horsie/harvester/internal/race"
)

const day = 24 * time.Hour

// Defaults applied when Config leaves a field zero.
const (
	DefaultLookback   = 21 * day
	DefaultLookahead  = 7 * day
	DefaultMinRunners = 4
)

// Window bounds accepted race dates relative to the run clock.
type Window struct {
	Back  time.Duration
	Ahead time.Duration
}

// Config controls the acceptance checks.
type Config struct {
	Window        Window
	MinRunners    int
	GenericTitles []string
}

func (c Config) withDefaults() Config {
	if c.Window.Back <= 0 {
		c.Window.Back = DefaultLookback
	}
	if c.Window.Ahead <= 0 {
		c.Window.Ahead = DefaultLookahead
	}
	if c.MinRunners <= 0 {
		c.MinRunners = DefaultMinRunners
	}
	if len(c.GenericTitles) == 0 {
		c.GenericTitles = []string{"netkeiba"}
	}
	return c
}

// Verdict is the outcome of Check. Reason is empty when Accepted.
type Verdict struct {
	Accepted bool
	Reason   race.RejectReason
}

func accept() Verdict { return Verdict{Accepted: true} }

func rejectWith(reason race.RejectReason) Verdict { return Verdict{Reason: reason} }

// Filter applies the checks in a fixed order; the first failing check names the rejection.
type Filter struct {
	cfg    Config
	checks []check
}

type check struct {
	reason race.RejectReason
	pass   func(rec race.Record, now time.Time) bool
}

// New builds a Filter.
func New(cfg Config) *Filter {
	f := &Filter{cfg: cfg.withDefaults()}
	f.checks = []check{
		{reason: race.RejectTitle, pass: f.titleOK},
		{reason: race.RejectRunners, pass: f.runnersOK},
		{reason: race.RejectDate, pass: dateOK},
		{reason: race.RejectWindow, pass: f.inWindow},
	}
	return f
}

// Window returns the effective acceptance window.
func (f *Filter) Window() Window {
	return f.cfg.Window
}

// Check evaluates rec against the run clock.
func (f *Filter) Check(rec race.Record, now time.Time) Verdict {
	for _, c := range f.checks {
		if !c.pass(rec, now) {
			return rejectWith(c.reason)
		}
	}
	return accept()
}

func (f *Filter) titleOK(rec race.Record, _ time.Time) bool {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, name := range f.cfg.GenericTitles {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return false
		}
	}
	return true
}

func (f *Filter) runnersOK(rec race.Record, _ time.Time) bool {
	return len(rec.Horses) >= f.cfg.MinRunners
}

func dateOK(rec race.Record, _ time.Time) bool {
	_, err := time.Parse(race.DateLayout, rec.Date)
	return err == nil
}

// inWindow compares calendar days in UTC, so both boundary days are inside the window.
func (f *Filter) inWindow(rec race.Record, now time.Time) bool {
	date, err := time.Parse(race.DateLayout, rec.Date)
	if err != nil {
		return false
	}
	today := now.UTC().Truncate(day)
	earliest := today.Add(-f.cfg.Window.Back)
	latest := today.Add(f.cfg.Window.Ahead)
	return !date.Before(earliest) && !date.After(latest)
}
