package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/horsie/harvester/internal/race"
)

const (
	minTitleLen    = 3
	titleSeparator = "|"
)

var (
	gradeMarker = regexp.MustCompile(`\(G[123]\)`)
	gradeValue  = regexp.MustCompile(`\(G([123])\)`)
)

// pickTitle returns the full <title> text and the race title: its first segment, or the first <h1> when that is too short.
func pickTitle(page *goquery.Document) (meta, title string) {
	meta = page.Find("title").First().Text()
	title, _, _ = strings.Cut(meta, titleSeparator)
	title = strings.TrimSpace(title)
	if len([]rune(title)) >= minTitleLen {
		return meta, title
	}
	return meta, strings.TrimSpace(page.Find("h1").First().Text())
}

// cleanTitle drops grade markers and collapses whitespace.
func cleanTitle(title string) string {
	return collapseSpace(gradeMarker.ReplaceAllString(title, ""))
}

// parseGrade takes the first (Gn) marker across sources in order.
func parseGrade(sources ...string) string {
	for _, text := range sources {
		if m := gradeValue.FindStringSubmatch(text); m != nil {
			return "G" + m[1]
		}
	}
	return race.GradeNone
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
