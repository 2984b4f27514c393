package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artist-census/catalog"
	"artist-census/models"
	"artist-census/storage"
)

var clock = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func playlist(id, name, owner string, public bool) catalog.Playlist {
	p := catalog.Playlist{ID: id, Name: name, Public: public}
	p.Owner.ID = owner
	return p
}

func added(ago time.Duration, trackID string, artistIDs ...string) catalog.PlaylistItem {
	tr := &catalog.Track{ID: trackID}
	for _, id := range artistIDs {
		tr.Artists = append(tr.Artists, catalog.SimpleArtist{ID: id, Name: "artist " + id})
	}
	it := catalog.PlaylistItem{Track: tr}
	if ago >= 0 {
		it.AddedAt = clock.Add(-ago)
	}
	return it
}

func newEditorialHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.catalog.playlists = []catalog.Playlist{
		playlist("p1", "Fresh Finds", "spotify", true),
		playlist("p2", "Today's Top Hits", "spotify", true),
		playlist("p3", "Drafts", "spotify", false),
		playlist("p4", "Fan Picks", "someone", true),
		playlist("p5", "Chill", "spotify", true),
	}
	h.catalog.items = map[string][]catalog.PlaylistItem{
		"p1": {
			added(2*time.Hour, "t1", "x1", "x2"),
			added(time.Hour, "t2", "x1"),
			added(72*time.Hour, "t3", "x3"),
			{AddedAt: clock},
			added(-1, "t4", "x4"), // no added_at
		},
		"p2": {added(time.Hour, "t5", "x5")},
		"p5": {added(30*time.Minute, "t6", "x6", "x1")},
	}
	h.c.Now = func() time.Time { return clock }
	return h
}

func TestCollectPlaylistsKeepsPublicOwnPlaylists(t *testing.T) {
	h := newEditorialHarness(t)
	ctx := context.Background()

	_, err := h.c.CollectPlaylists(ctx)
	require.NoError(t, err)
	lists, err := h.c.Store.Playlists()
	require.NoError(t, err)
	var ids []string
	for _, p := range lists {
		ids = append(ids, p.ID)
		assert.Equal(t, "spotify", p.Owner)
	}
	assert.Equal(t, []string{"p1", "p2", "p5"}, ids)

	// a second listing adds nothing
	_, err = h.c.CollectPlaylists(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.c.Store.Ledger(storage.Playlists).Len())
}

func TestCollectPlaylistArtistsWithinWindow(t *testing.T) {
	h := newEditorialHarness(t)
	ctx := context.Background()
	_, err := h.c.CollectPlaylists(ctx)
	require.NoError(t, err)

	_, err = h.c.CollectPlaylistArtists(ctx, 0, 7)
	require.NoError(t, err)

	ledger := h.c.Store.Ledger(storage.PlaylistArtists)
	assert.ElementsMatch(t, []string{"x1", "x2", "x6"}, ledger.Keys(),
		"stale, undated and skipped-playlist artists are left out")
	assert.Equal(t, 3, ledger.Len(), "an artist is recorded once")

	// nothing new on a rerun
	h.reopen(t)
	h.c.Now = func() time.Time { return clock }
	_, err = h.c.CollectPlaylistArtists(ctx, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, h.c.Store.Ledger(storage.PlaylistArtists).Len())
}

func TestCollectPlaylistArtistsStopsAtCap(t *testing.T) {
	h := newEditorialHarness(t)
	h.cfg.PlaylistBatchSize = 1
	ctx := context.Background()
	_, err := h.c.CollectPlaylists(ctx)
	require.NoError(t, err)

	stats, err := h.c.CollectPlaylistArtists(ctx, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Batches, "either playlist yields two artists")
	assert.Equal(t, 2, h.c.Store.Ledger(storage.PlaylistArtists).Len())
}

func TestEditorialArtistsStayApart(t *testing.T) {
	h := newEditorialHarness(t)
	h.catalog.artists["x one"] = catalog.Artist{ID: "x1", Name: "X One", Popularity: 40}
	h.catalog.artists["x two"] = catalog.Artist{ID: "x2", Name: "X Two", Popularity: 30}
	h.catalog.artists["x six"] = catalog.Artist{ID: "x6", Name: "X Six", Popularity: 20}
	ctx := context.Background()
	_, err := h.c.CollectPlaylists(ctx)
	require.NoError(t, err)
	_, err = h.c.CollectPlaylistArtists(ctx, 0, 7)
	require.NoError(t, err)

	stats, err := h.c.CollectEditorialArtists(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Items)
	assert.Empty(t, h.c.Store.UnfetchedEditorialIDs(0))

	census, err := h.c.Store.Artists()
	require.NoError(t, err)
	assert.Empty(t, census)

	_, report, err := h.c.Classify(ctx, ClassifyOptions{Preset: "r1", Year: 2026, Editorial: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
}

func TestSamplePopularity(t *testing.T) {
	h := newHarness(t)
	h.catalog.ranked = []catalog.Artist{
		{ID: "r0", Name: "Top", Popularity: 90},
		{ID: "r1", Name: "Second", Popularity: 80},
		{ID: "r2", Name: "Third", Popularity: 75},
	}
	ctx := context.Background()
	query := `artist:""`

	_, err := h.c.SamplePopularity(ctx, query, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4, 6, 8}, h.catalog.offsets)

	curve, err := h.c.PopularityCurve(query)
	require.NoError(t, err)
	require.Len(t, curve, 5)
	assert.Equal(t, 90, curve[0].Popularity)
	assert.Equal(t, "r2", curve[1].ID)
	assert.Equal(t, models.MissingMarker, curve[2].ID, "past the last result")
	assert.Equal(t, models.Missing, curve[4].Popularity)

	// sampled offsets are skipped and the window is capped
	h.catalog.offsets = nil
	_, err = h.c.SamplePopularity(ctx, query, 4, 5000)
	require.NoError(t, err)
	assert.Equal(t, []int{250, 500, 750}, h.catalog.offsets)

	_, err = h.c.SamplePopularity(ctx, query, 0, 10)
	assert.Error(t, err)
}
