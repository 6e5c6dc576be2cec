// Package candidate builds the ordered race identifier space probed by a harvest.
package candidate

import (
	"fmt"

	"github.com/horsie/harvester/internal/race"
)

// trackNames maps JRA venue codes to track names.
var trackNames = map[string]string{
	"01": "Sapporo",
	"02": "Hakodate",
	"03": "Fukushima",
	"04": "Niigata",
	"05": "Tokyo",
	"06": "Nakayama",
	"07": "Chukyo",
	"08": "Kyoto",
	"09": "Hanshin",
	"10": "Kokura",
}

// Default dimension orderings. Venues are ranked by how busy they usually are; every other
// dimension runs newest-first so the sequence front-loads the likeliest live races.
var (
	DefaultVenues   = []string{"05", "08", "04", "06", "09", "07", "10", "03", "01", "02"}
	DefaultMeetings = []string{"05", "04", "03", "02", "01"}
	DefaultDays     = []string{"12", "11", "10", "09", "08", "07", "06", "05", "04", "03", "02", "01"}
	DefaultRaces    = []string{"12", "11", "10", "09", "08", "07", "06", "05", "04", "03", "02", "01"}
)

// TrackName resolves a venue code, returning race.Unknown for codes outside the table.
func TrackName(venue string) string {
	if name, ok := trackNames[venue]; ok {
		return name
	}
	return race.Unknown
}

// Tables holds the ordered dimension values combined into candidate identifiers.
type Tables struct {
	Year     int      `mapstructure:"year"`
	Venues   []string `mapstructure:"venues"`
	Meetings []string `mapstructure:"meetings"`
	Days     []string `mapstructure:"days"`
	Races    []string `mapstructure:"races"`
}

// DefaultTables returns the stock dimension tables for the given year.
func DefaultTables(year int) Tables {
	return Tables{
		Year:     year,
		Venues:   cloneCodes(DefaultVenues),
		Meetings: cloneCodes(DefaultMeetings),
		Days:     cloneCodes(DefaultDays),
		Races:    cloneCodes(DefaultRaces),
	}
}

// Validate checks that every dimension is non-empty and holds two-digit codes.
func (t Tables) Validate() error {
	if t.Year < 1000 || t.Year > 9999 {
		return fmt.Errorf("candidates.year must have four digits, got %d", t.Year)
	}
	dims := []struct {
		name  string
		codes []string
	}{
		{"venues", t.Venues},
		{"meetings", t.Meetings},
		{"days", t.Days},
		{"races", t.Races},
	}
	for _, d := range dims {
		if len(d.codes) == 0 {
			return fmt.Errorf("candidates.%s must not be empty", d.name)
		}
		for _, code := range d.codes {
			if !twoDigits(code) {
				return fmt.Errorf("candidates.%s: %q is not a two-digit code", d.name, code)
			}
		}
	}
	return nil
}

func twoDigits(code string) bool {
	return len(code) == 2 && code[0] >= '0' && code[0] <= '9' && code[1] >= '0' && code[1] <= '9'
}

func cloneCodes(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}
