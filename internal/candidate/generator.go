package candidate

import "github.com/horsie/harvester/internal/race"

// Size is the number of identifiers Generate yields for t.
func Size(t Tables) int {
	return len(t.Venues) * len(t.Meetings) * len(t.Days) * len(t.Races)
}

// Generate returns the Cartesian product of the tables, venue outermost and race innermost,
// keeping each dimension's declared order.
func Generate(t Tables) []race.CandidateID {
	ids := make([]race.CandidateID, 0, Size(t))
	for _, venue := range t.Venues {
		for _, meeting := range t.Meetings {
			for _, day := range t.Days {
				for _, raceNo := range t.Races {
					ids = append(ids, race.NewCandidateID(t.Year, venue, meeting, day, raceNo))
				}
			}
		}
	}
	return ids
}
