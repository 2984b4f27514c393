package services

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	"artist-census/models"
	"artist-census/utils"
)

// Rules are the thresholds of the activity predicates. Several historical
// variants exist and none is known to be the intended final rule, so each
// ships as a preset.
type Rules struct {
	Name string

	// active: last_release > Y-W and (Y-first < G or tracks > (Y-first)*R)
	ActiveWindow        int
	ActiveWindowStrict  int
	GraceYears          int
	GraceYearsStrict    int
	TracksPerYear       int
	TracksPerYearStrict int

	// MatureYears > 0 also counts a recent artist as active once
	// Y-first > MatureYears, whatever its track count.
	MatureYears int

	// new_active: active and first_release > Y-NewActiveWindow
	NewActiveWindow int

	// legacy: releases > LegacyMinReleases, last_release < Y-LegacyWindow
	// and tracks >= LegacyTracksPerYear*(last-first)
	LegacyWindow        int
	LegacyMinReleases   int
	LegacyTracksPerYear int

	// famous_legacy: legacy and popularity > FamousPopularity
	FamousPopularity int

	// productive: releases > ProductiveMinReleases or last_release > Y-ProductiveWindow,
	// and Y-first outside [HobbyMinYears, HobbyMaxYears] or tracks > (Y-first)*ProductiveTracksPerYear
	ProductiveMinReleases   int
	ProductiveWindow        int
	HobbyMinYears           int
	HobbyMaxYears           int
	ProductiveTracksPerYear int
}

var presets = map[string]Rules{
	"r0": {
		Name:         "r0",
		ActiveWindow: 5, ActiveWindowStrict: 2,
		GraceYears: 2, GraceYearsStrict: 0,
		TracksPerYear: 1, TracksPerYearStrict: 4,
		MatureYears: 10,

		NewActiveWindow:     5,
		LegacyWindow:        5,
		LegacyMinReleases:   2,
		LegacyTracksPerYear: 0,
		FamousPopularity:    50,

		ProductiveMinReleases: 2, ProductiveWindow: 5,
		HobbyMinYears: 2, HobbyMaxYears: 10,
		ProductiveTracksPerYear: 1,
	},
	"r1": {
		Name:         "r1",
		ActiveWindow: 5, ActiveWindowStrict: 2,
		GraceYears: 2, GraceYearsStrict: 0,
		TracksPerYear: 1, TracksPerYearStrict: 4,
		NewActiveWindow:     5,
		LegacyWindow:        5,
		LegacyMinReleases:   2,
		LegacyTracksPerYear: 1,
		FamousPopularity:    50,

		ProductiveMinReleases: 2, ProductiveWindow: 5,
		HobbyMinYears: 2, HobbyMaxYears: 10,
		ProductiveTracksPerYear: 1,
	},
	"r2": {
		Name:         "r2",
		ActiveWindow: 5, ActiveWindowStrict: 2,
		GraceYears: 2, GraceYearsStrict: 0,
		TracksPerYear: 2, TracksPerYearStrict: 4,
		NewActiveWindow:     5,
		LegacyWindow:        5,
		LegacyMinReleases:   2,
		LegacyTracksPerYear: 2,
		FamousPopularity:    50,

		ProductiveMinReleases: 2, ProductiveWindow: 5,
		HobbyMinYears: 2, HobbyMaxYears: 10,
		ProductiveTracksPerYear: 1,
	},
}

// PresetRules returns the named rule preset.
func PresetRules(name string) (Rules, error) {
	r, ok := presets[name]
	if !ok {
		return Rules{}, fmt.Errorf("classifier: unknown preset %q", name)
	}
	return r, nil
}

// Classifier partitions artist records into activity cohorts relative to a
// reference year. It never mutates its input.
type Classifier struct {
	rules  Rules
	year   int
	logger *utils.Logger
}

func NewClassifier(rules Rules, year int, logger *utils.Logger) *Classifier {
	return &Classifier{rules: rules, year: year, logger: logger}
}

func (c *Classifier) IsActive(a models.ArtistInfo, strict bool) bool {
	if a.NumReleases <= 0 {
		return false
	}
	w, g, r := c.rules.ActiveWindow, c.rules.GraceYears, c.rules.TracksPerYear
	if strict {
		w, g, r = c.rules.ActiveWindowStrict, c.rules.GraceYearsStrict, c.rules.TracksPerYearStrict
	}
	if a.LastRelease <= c.year-w {
		return false
	}
	age := c.year - a.FirstRelease
	if c.rules.MatureYears > 0 && age > c.rules.MatureYears {
		return true
	}
	return age < g || a.NumTracks > age*r
}

func (c *Classifier) IsNewActive(a models.ArtistInfo, strict bool) bool {
	return c.IsActive(a, strict) && a.FirstRelease > c.year-c.rules.NewActiveWindow
}

func (c *Classifier) IsLegacy(a models.ArtistInfo) bool {
	return a.NumReleases > 0 &&
		a.NumReleases > c.rules.LegacyMinReleases &&
		a.LastRelease < c.year-c.rules.LegacyWindow &&
		a.NumTracks >= c.rules.LegacyTracksPerYear*(a.LastRelease-a.FirstRelease)
}

func (c *Classifier) IsFamousLegacy(a models.ArtistInfo) bool {
	return c.IsLegacy(a) && a.Popularity > c.rules.FamousPopularity
}

// IsProductive drops one-off and hobby artists: a productive artist has
// several releases or a recent one, and is either very new, long established
// or releases more than a track a year.
func (c *Classifier) IsProductive(a models.ArtistInfo) bool {
	if a.NumReleases <= 0 {
		return false
	}
	if a.NumReleases <= c.rules.ProductiveMinReleases && a.LastRelease <= c.year-c.rules.ProductiveWindow {
		return false
	}
	age := c.year - a.FirstRelease
	return age > c.rules.HobbyMaxYears || age < c.rules.HobbyMinYears ||
		a.NumTracks > age*c.rules.ProductiveTracksPerYear
}

// Active lazily yields the active artists.
func (c *Classifier) Active(records []models.ArtistInfo, strict bool) iter.Seq[models.ArtistInfo] {
	return filter(records, func(a models.ArtistInfo) bool { return c.IsActive(a, strict) })
}

func (c *Classifier) NewActive(records []models.ArtistInfo, strict bool) iter.Seq[models.ArtistInfo] {
	return filter(records, func(a models.ArtistInfo) bool { return c.IsNewActive(a, strict) })
}

func (c *Classifier) Legacy(records []models.ArtistInfo) iter.Seq[models.ArtistInfo] {
	return filter(records, c.IsLegacy)
}

func (c *Classifier) FamousLegacy(records []models.ArtistInfo) iter.Seq[models.ArtistInfo] {
	return filter(records, c.IsFamousLegacy)
}

func (c *Classifier) Productive(records []models.ArtistInfo) iter.Seq[models.ArtistInfo] {
	return filter(records, c.IsProductive)
}

func filter(records []models.ArtistInfo, keep func(models.ArtistInfo) bool) iter.Seq[models.ArtistInfo] {
	return func(yield func(models.ArtistInfo) bool) {
		for _, a := range records {
			if keep(a) && !yield(a) {
				return
			}
		}
	}
}

const topN = 5

// Report counts every cohort over records.
func (c *Classifier) Report(records []models.ArtistInfo, strict bool) *models.CohortReport {
	r := &models.CohortReport{
		Year:   c.year,
		Preset: c.rules.Name,
		Strict: strict,
		Total:  len(records),
	}
	for _, a := range records {
		if a.IsMissing() {
			r.Sentinel++
		} else if a.NumReleases > 0 {
			r.Releases++
		}
	}

	newActive := slices.Collect(c.NewActive(records, strict))
	famous := slices.Collect(c.FamousLegacy(records))
	r.Active = count(c.Active(records, strict))
	r.NewActive = len(newActive)
	r.Legacy = count(c.Legacy(records))
	r.FamousLegacy = len(famous)
	r.Productive = count(c.Productive(records))
	r.TopNewActive = topByPopularity(newActive, topN)
	r.TopFamousLegacy = topByPopularity(famous, topN)

	c.logger.Info("[classifier] %d artists, %d with releases: productive %d, active %d, new active %d, legacy %d, famous legacy %d",
		r.Total, r.Releases, r.Productive, r.Active, r.NewActive, r.Legacy, r.FamousLegacy)
	return r
}

func count(seq iter.Seq[models.ArtistInfo]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

func topByPopularity(records []models.ArtistInfo, n int) []models.ArtistInfo {
	sorted := slices.Clone(records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Print renders the report to stdout.
func (c *Classifier) Print(r *models.CohortReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	mode := "normal"
	if r.Strict {
		mode = "strict"
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  ARTIST ACTIVITY COHORTS (%d, preset %s, %s)\033[0m\n", r.Year, r.Preset, mode)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Artists in ledger      : \033[1m%d\033[0m\n", r.Total)
	fmt.Printf("  Unavailable (sentinel) : \033[1m%d\033[0m\n", r.Sentinel)
	fmt.Printf("  With releases          : \033[1m%d\033[0m\n", r.Releases)
	fmt.Println()

	fmt.Printf("\033[1;33m  Cohorts\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Productive", r.Productive},
		{"Active", r.Active},
		{"New active", r.NewActive},
		{"Legacy", r.Legacy},
		{"Famous legacy", r.FamousLegacy},
	} {
		fmt.Printf("  %-14s \033[1;32m%6d\033[0m  (%5.2f%%)\n", row.label, row.n, round2(r.Share(row.n)))
	}
	fmt.Println()

	printTop("Most popular new active artists", r.TopNewActive, thin)
	printTop("Most popular famous legacy artists", r.TopFamousLegacy, thin)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printTop(title string, records []models.ArtistInfo, thin string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(records) == 0 {
		fmt.Printf("  None\n\n")
		return
	}
	for i, a := range records {
		fmt.Printf("  \033[1m%d.\033[0m %-34s %4d-%-4d \033[1;32m%3d\033[0m\n",
			i+1, truncate(a.Name, 32), a.FirstRelease, a.LastRelease, a.Popularity)
	}
	fmt.Println()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
