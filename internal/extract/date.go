package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	textualDate = regexp.MustCompile(`(?i)(\d{1,2})\s+(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)\s+(\d{4})`)
	numericDate = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	bodyDate    = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
)

var months = map[string]time.Month{
	"JAN": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"APR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AUG": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DEC": time.December,
}

// resolveDate tries "D MON YYYY" in the titles, then "YYYY-M-D" in the titles, then "YYYY/M/D" in the body.
// A match that is not a real calendar date falls through to the next source.
func resolveDate(body string, titles ...string) (time.Time, bool) {
	for _, text := range titles {
		if m := textualDate.FindStringSubmatch(text); m != nil {
			if d, ok := calendarDate(m[3], int(months[strings.ToUpper(m[2])]), m[1]); ok {
				return d, true
			}
		}
	}
	for _, text := range titles {
		if d, ok := numericMatch(numericDate, text); ok {
			return d, true
		}
	}
	return numericMatch(bodyDate, body)
}

func numericMatch(pattern *regexp.Regexp, text string) (time.Time, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	return calendarDate(m[1], month, m[3])
}

func calendarDate(year string, month int, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(month), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, e.g. Feb 30 becomes Mar 2.
	if t.Month() != time.Month(month) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
