package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artist-census/utils"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(context.Background(), Config{BaseURL: srv.URL, HTTPClient: srv.Client()}, utils.NewNopLogger())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchArtistsPagesUpToWindow(t *testing.T) {
	var offsets []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, `artist:"boards of canada"`, q.Get("q"))
		assert.Equal(t, "artist", q.Get("type"))
		offsets = append(offsets, q.Get("offset"))

		limit, _ := strconv.Atoi(q.Get("limit"))
		items := make([]Artist, limit)
		for i := range items {
			items[i] = Artist{ID: q.Get("offset") + "-" + strconv.Itoa(i), Name: "x"}
		}
		writeJSON(w, map[string]any{"artists": map[string]any{"items": items, "next": "more"}})
	})

	got, err := c.SearchArtists(context.Background(), "boards of canada", 120)
	require.NoError(t, err)
	assert.Len(t, got, 120)
	assert.Equal(t, []string{"0", "50", "100"}, offsets)
}

func TestSearchArtistsStopsOnShortPage(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, map[string]any{"artists": map[string]any{
			"items": []Artist{{ID: "1", Name: "Aphex Twin"}},
			"next":  "",
		}})
	})

	got, err := c.SearchArtists(context.Background(), "aphex twin", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, got, 1)
	assert.Equal(t, "Aphex Twin", got[0].Name)
}

func TestArtistsKeepsNullPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"artists":[{"id":"a","name":"A","popularity":40,"followers":{"total":9},"genres":["idm"]},null]}`))
	})

	got, err := c.Artists(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].Followers.Total)
	assert.Nil(t, got[1])
}

func TestArtistsRejectsOversizedBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	ids := strings.Split(strings.Repeat("x,", 51), ",")[:51]
	_, err := c.Artists(context.Background(), ids)
	assert.Error(t, err)
}

func TestReleasesFollowsNext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/artists/art1/albums", r.URL.Path)
		assert.Equal(t, "album,single", r.URL.Query().Get("include_groups"))
		if r.URL.Query().Get("offset") == "0" {
			writeJSON(w, map[string]any{"items": []Album{{ID: "r1", AlbumType: "album", ReleaseDate: "2001-04-02", TotalTracks: 10}}, "next": "page2"})
			return
		}
		writeJSON(w, map[string]any{"items": []Album{{ID: "r2", AlbumType: "single", ReleaseDate: "2005", TotalTracks: 2}}, "next": ""})
	})

	got, err := c.Releases(context.Background(), "art1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[1].ID)
}

func TestSearchArtistsAt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, `artist:""`, q.Get("q"))
		assert.Equal(t, "1", q.Get("limit"))
		if q.Get("offset") == "999" {
			writeJSON(w, map[string]any{"artists": map[string]any{"items": []Artist{}}})
			return
		}
		writeJSON(w, map[string]any{"artists": map[string]any{"items": []Artist{{ID: "x" + q.Get("offset"), Popularity: 42}}}})
	})

	got, err := c.SearchArtistsAt(context.Background(), `artist:""`, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "x10", got.ID)
	assert.Equal(t, 42, got.Popularity)

	got, err = c.SearchArtistsAt(context.Background(), `artist:""`, 999)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = c.SearchArtistsAt(context.Background(), `artist:""`, MaxSearchWindow)
	assert.Error(t, err)
}

func TestUserPlaylistsFollowsNext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/spotify/playlists", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(`{"items":[{"id":"p1","name":"Fresh Finds","public":true,"owner":{"id":"spotify"}}],"next":"page2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"p2","name":"Mine","public":null,"owner":{"id":"someone"}}],"next":null}`))
	})

	got, err := c.UserPlaylists(context.Background(), "spotify")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Fresh Finds", got[0].Name)
	assert.True(t, got[0].Public)
	assert.Equal(t, "spotify", got[0].Owner.ID)
	assert.False(t, got[1].Public)
}

func TestPlaylistItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlists/p1/tracks", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"added_at":"2024-05-01T10:00:00Z","track":{"id":"t1","artists":[{"id":"a1","name":"A"},{"id":"a2","name":"B"}]}},
			{"added_at":null,"track":null}
		],"next":null}`))
	})

	got, err := c.PlaylistItems(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-01T10:00:00Z", got[0].AddedAt.Format(time.RFC3339))
	require.NotNil(t, got[0].Track)
	assert.Len(t, got[0].Track.Artists, 2)
	assert.Nil(t, got[1].Track)
	assert.True(t, got[1].AddedAt.IsZero())
}

func TestAPIErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := c.Tracks(context.Background(), []string{"t1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "slow down", apiErr.Body)
}

func TestAudioFeaturesNulls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio-features", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"audio_features":[null,{"id":"t2","loudness":-7.5,"key":5,"time_signature":4}]}`))
	})

	got, err := c.AudioFeatures(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0])
	assert.Equal(t, -7.5, got[1].Loudness)
	assert.Equal(t, 4, got[1].TimeSignature)
}

func TestContextCancelStopsCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AlbumTracks(ctx, "alb")
	assert.Error(t, err)
}
