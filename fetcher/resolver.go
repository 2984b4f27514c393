package fetcher

import (
	"context"
	"strings"

	"artist-census/catalog"
	"artist-census/models"
	"artist-census/utils"
)

// Searcher looks artists up by name.
type Searcher interface {
	SearchArtists(ctx context.Context, name string, window int) ([]catalog.Artist, error)
}

// Outcome is the result of resolving one batch of names.
type Outcome struct {
	Resolved []models.Resolution
	Missing  []string
}

// Resolver maps names to catalog IDs by exact, case-insensitive name match
// within a bounded window of search results.
type Resolver struct {
	catalog Searcher
	window  int
	logger  *utils.Logger
}

func NewResolver(s Searcher, window int, logger *utils.Logger) *Resolver {
	return &Resolver{catalog: s, window: window, logger: logger}
}

// Resolve searches every name once. A name without an exact match is
// missing, not an error; a failed search fails the whole batch.
func (r *Resolver) Resolve(ctx context.Context, names []string) (Outcome, error) {
	var out Outcome
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		candidates, err := r.catalog.SearchArtists(ctx, name, r.window)
		if err != nil {
			return Outcome{}, err
		}
		if a, ok := MatchExact(name, candidates); ok {
			out.Resolved = append(out.Resolved, models.Resolution{Name: name, ID: a.ID})
		} else {
			out.Missing = append(out.Missing, name)
		}
	}
	r.logger.Debug("[resolver] %d names: %d resolved, %d missing", len(names), len(out.Resolved), len(out.Missing))
	return out, nil
}

// MatchExact returns the first candidate whose display name equals name,
// ignoring case.
func MatchExact(name string, candidates []catalog.Artist) (catalog.Artist, bool) {
	want := strings.ToLower(name)
	for _, c := range candidates {
		if strings.ToLower(c.Name) == want {
			return c, true
		}
	}
	return catalog.Artist{}, false
}
