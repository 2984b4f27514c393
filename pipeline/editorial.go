package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"artist-census/catalog"
	"artist-census/fetcher"
	"artist-census/models"
	"artist-census/storage"
	"artist-census/utils"
)

// CollectPlaylists records the public playlists owned by the editorial
// account that are not ledgered yet.
func (c *Campaign) CollectPlaylists(ctx context.Context) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	ledger := c.Store.Ledger(storage.Playlists)
	return fetcher.Run(ctx, c.runner(0, 0), "playlists", []string{c.Config.PlaylistOwner}, 1,
		func(ctx context.Context, batch []string) ([][]string, error) {
			owner := batch[0]
			lists, err := c.Catalog.UserPlaylists(ctx, owner)
			if err != nil {
				return nil, err
			}
			seen := utils.NewKeySet()
			var rows [][]string
			foreign := 0
			for _, p := range lists {
				if p.Owner.ID != owner || !p.Public {
					foreign++
					continue
				}
				if ledger.Has(p.ID) || !seen.Add(p.ID) {
					continue
				}
				rows = append(rows, models.Playlist{ID: p.ID, Name: p.Name, Owner: owner}.Row())
			}
			c.Logger.Info("[playlists] %s lists %d playlists: %d new, %d private or not its own",
				owner, len(lists), len(rows), foreign)
			return rows, nil
		},
		ledger.Append)
}

func skipPlaylist(name string, words []string) bool {
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// CollectPlaylistArtists records up to n artists (all when n <= 0) with a
// track added to an editorial playlist within the configured window.
// Playlists whose name marks a priori popular tracks are skipped. The rest
// are visited in an order shuffled by seed, so a capped run draws its
// artists from across the playlists.
func (c *Campaign) CollectPlaylistArtists(ctx context.Context, n int, seed int64) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	all, err := c.Store.Playlists()
	if err != nil {
		return fetcher.Stats{}, err
	}
	playlists := make([]models.Playlist, 0, len(all))
	for _, p := range all {
		if skipPlaylist(p.Name, c.Config.PlaylistSkipWords) {
			c.Logger.Debug("[playlist-artists] skipping %q", p.Name)
			continue
		}
		playlists = append(playlists, p)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(playlists), func(i, j int) { playlists[i], playlists[j] = playlists[j], playlists[i] })

	since := c.now().Add(-c.Config.PlaylistWindow)
	ledger := c.Store.Ledger(storage.PlaylistArtists)
	left := n
	return fetcher.Run(ctx, c.runner(c.Config.DetailCooldown, 0), "playlist-artists", playlists, c.Config.PlaylistBatchSize,
		func(ctx context.Context, batch []models.Playlist) ([][]string, error) {
			seen := utils.NewKeySet()
			var rows [][]string
			for _, p := range batch {
				items, err := c.Catalog.PlaylistItems(ctx, p.ID)
				if err != nil {
					return nil, fmt.Errorf("playlist %s: %w", p.ID, err)
				}
				rows = append(rows, recentArtists(p, items, since, ledger, seen)...)
			}
			return rows, nil
		},
		func(rows [][]string) error {
			if n > 0 && len(rows) >= left {
				if err := ledger.Append(rows[:left]); err != nil {
					return err
				}
				return fetcher.ErrDone
			}
			if err := ledger.Append(rows); err != nil {
				return err
			}
			left -= len(rows)
			return nil
		})
}

func recentArtists(p models.Playlist, items []catalog.PlaylistItem, since time.Time, ledger *storage.Ledger, seen *utils.KeySet) [][]string {
	var rows [][]string
	for _, it := range items {
		// a zero added_at is before any window
		if it.Track == nil || it.AddedAt.Before(since) {
			continue
		}
		for _, a := range it.Track.Artists {
			if a.ID == "" || ledger.Has(a.ID) || !seen.Add(a.ID) {
				continue
			}
			rows = append(rows, models.PlaylistArtist{
				ArtistID: a.ID, TrackID: it.Track.ID, Playlist: p.Name, AddedAt: it.AddedAt,
			}.Row())
		}
	}
	return rows
}

// CollectEditorialArtists fetches profile and release summary for up to n
// playlist artists without an editorial info row. They are kept apart from
// the census artists.
func (c *Campaign) CollectEditorialArtists(ctx context.Context, n int) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	return c.collectArtistInfo(ctx, "editorial-artists", c.Store.UnfetchedEditorialIDs(n), c.Store.Ledger(storage.EditorialInfo))
}

// SamplePopularity records the artist that query ranks at evenly spaced
// offsets below maxOffset, samples offsets in all. Offsets already sampled
// for query are skipped; an offset past the last result records a sentinel.
func (c *Campaign) SamplePopularity(ctx context.Context, query string, samples, maxOffset int) (fetcher.Stats, error) {
	if c.Catalog == nil {
		return fetcher.Stats{}, fmt.Errorf("%w: catalog", ErrNotConfigured)
	}
	if samples < 1 {
		return fetcher.Stats{}, fmt.Errorf("popularity: need at least one sample, got %d", samples)
	}
	maxOffset = min(maxOffset, catalog.MaxSearchWindow)
	step := max(maxOffset/samples, 1)

	ledger := c.Store.Ledger(storage.PopularitySamples)
	var offsets []int
	for off := 0; off < maxOffset; off += step {
		if !ledger.Has(models.SampleKey(query, off)) {
			offsets = append(offsets, off)
		}
	}

	return fetcher.Run(ctx, c.runner(c.Config.IDCooldown, 0), "popularity", offsets, c.Config.IDBatchSize,
		func(ctx context.Context, batch []int) ([][]string, error) {
			rows := make([][]string, 0, len(batch))
			for _, off := range batch {
				a, err := c.Catalog.SearchArtistsAt(ctx, query, off)
				if err != nil {
					return nil, fmt.Errorf("offset %d: %w", off, err)
				}
				s := models.MissingSample(query, off)
				if a != nil {
					s = models.PopularitySample{Query: query, Offset: off, ID: a.ID, Name: a.Name, Popularity: a.Popularity}
				}
				rows = append(rows, s.Row())
			}
			return rows, nil
		},
		ledger.Append)
}

// PopularityCurve returns the recorded samples of query by offset.
func (c *Campaign) PopularityCurve(query string) ([]models.PopularitySample, error) {
	return c.Store.PopularityCurve(query)
}
