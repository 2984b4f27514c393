package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artist-census/utils"
)

func catalogServer(t *testing.T, total int) (*httptest.Server, *[]string) {
	t.Helper()
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/2/artist", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("query"))
		assert.Equal(t, "json", q.Get("fmt"))
		assert.Equal(t, "census-test/0.1", r.Header.Get("User-Agent"))
		offsets = append(offsets, q.Get("offset"))

		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		var artists []map[string]string
		for i := offset; i < min(offset+limit, total); i++ {
			artists = append(artists, map[string]string{"id": strconv.Itoa(i), "name": fmt.Sprintf("Artist %d", i)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"count": total, "offset": offset, "artists": artists})
	}))
	t.Cleanup(srv.Close)
	return srv, &offsets
}

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, UserAgent: "census-test/0.1", MaxRetries: 1}, utils.NewNopLogger())
}

func TestFetchPage(t *testing.T) {
	srv, _ := catalogServer(t, 250)
	c := newTestClient(srv.URL)

	names, total, err := c.FetchPage(context.Background(), 200, 100)
	require.NoError(t, err)
	assert.Equal(t, 250, total)
	assert.Len(t, names, 50)
	assert.Equal(t, "Artist 200", names[0])
}

func TestCollectStopsOnShortPage(t *testing.T) {
	srv, offsets := catalogServer(t, 250)
	c := newTestClient(srv.URL)

	var got []string
	read, err := c.Collect(context.Background(), 0, 1000, func(names []string) error {
		got = append(got, names...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 250, read)
	assert.Len(t, got, 250)
	assert.Equal(t, []string{"0", "100", "200"}, *offsets)
}

func TestCollectZeroReadsToEnd(t *testing.T) {
	srv, offsets := catalogServer(t, 250)
	c := newTestClient(srv.URL)

	read, err := c.Collect(context.Background(), 0, 0, func([]string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 250, read)
	assert.Equal(t, []string{"0", "100", "200"}, *offsets)
}

func TestCollectHonoursCount(t *testing.T) {
	srv, offsets := catalogServer(t, 1000)
	c := newTestClient(srv.URL)

	read, err := c.Collect(context.Background(), 100, 150, func([]string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 150, read)
	assert.Equal(t, []string{"100", "200"}, *offsets)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, MaxRetries: 2}, utils.NewNopLogger())
	c.retry.BaseDelay = 0

	_, _, err := c.FetchPage(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
