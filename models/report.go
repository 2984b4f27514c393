package models

// CohortReport holds the cohort sizes computed over the artist-info ledger.
type CohortReport struct {
	Year     int
	Preset   string
	Strict   bool
	Total    int
	Sentinel int
	Releases int

	Productive   int
	Active       int
	NewActive    int
	Legacy       int
	FamousLegacy int

	// TopFamousLegacy and TopNewActive are sorted by popularity, descending.
	TopFamousLegacy []ArtistInfo
	TopNewActive    []ArtistInfo
}

// Share returns n as a percentage of the artists with releases.
func (r *CohortReport) Share(n int) float64 {
	if r.Releases == 0 {
		return 0
	}
	return float64(n) * 100 / float64(r.Releases)
}
