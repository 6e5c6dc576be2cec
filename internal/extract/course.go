package extract

import (
	"regexp"

	"github.com/horsie/harvester/internal/race"
)

var courseToken = regexp.MustCompile(`([TD])(\d{3,4})m`)

// parseCourse reads the first "T1800m"/"D1200m" token. Distance falls back to Unknown and surface to Turf.
func parseCourse(body string) (distance, surface string) {
	m := courseToken.FindStringSubmatch(body)
	if m == nil {
		return race.Unknown, race.SurfaceTurf
	}
	surface = race.SurfaceTurf
	if m[1] == "D" {
		surface = race.SurfaceDirt
	}
	return m[2] + "m", surface
}
