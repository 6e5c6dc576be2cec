package extract

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/horsie/harvester/internal/race"
)

const (
	runnerRowSelector = "tr.HorseList"
	minRunnerCells    = 7
	positionCell      = 1
	nameCell          = 3
	jockeyCell        = 6

	minPosition   = 1
	maxPosition   = 20
	minNameLen    = 2
	minJockeyLen  = 2
	maxNameLen    = 50
	maxJockeyLen  = 30
	nameSeparator = '\u00a0'
)

var leadingDigits = regexp.MustCompile(`^\d+`)

// parseRunners reads runner rows in document order. The first row seen for a post position wins.
func parseRunners(page *goquery.Document) []race.Runner {
	seen := make(map[int]struct{})
	runners := make([]race.Runner, 0)

	page.Find(runnerRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minRunnerCells {
			return
		}
		pos, ok := parsePosition(cells.Eq(positionCell).Text())
		if !ok {
			return
		}
		if _, dup := seen[pos]; dup {
			return
		}
		name := runnerName(cells.Eq(nameCell).Find("a").First().Text())
		jockey := collapseSpace(cells.Eq(jockeyCell).Text())
		if runeLen(name) < minNameLen || runeLen(jockey) < minJockeyLen {
			return
		}
		seen[pos] = struct{}{}
		runners = append(runners, race.Runner{
			Number: pos,
			Name:   truncate(name, maxNameLen),
			Jockey: truncate(jockey, maxJockeyLen),
		})
	})

	slices.SortStableFunc(runners, func(a, b race.Runner) int { return a.Number - b.Number })
	return runners
}

func parsePosition(text string) (int, bool) {
	digits := leadingDigits.FindString(strings.TrimSpace(text))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < minPosition || n > maxPosition {
		return 0, false
	}
	return n, true
}

// runnerName keeps the text before the first non-breaking space, which separates the name from annotations.
func runnerName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexRune(text, nameSeparator); i >= 0 {
		text = text[:i]
	}
	return collapseSpace(text)
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
