package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"artist-census/utils"
)

const (
	// MaxIDsPerRequest is the catalog's limit for batch lookups by ID.
	MaxIDsPerRequest = 50
	// MaxSearchWindow is the deepest offset the search endpoint serves.
	MaxSearchWindow = 1000

	pageSize         = 50
	playlistPageSize = 100
)

// Catalog is the streaming-catalog surface the pipeline depends on.
// Every call runs under the caller's batch context and never retries.
type Catalog interface {
	SearchArtists(ctx context.Context, name string, window int) ([]Artist, error)
	Artists(ctx context.Context, ids []string) ([]*Artist, error)
	Releases(ctx context.Context, artistID string) ([]Album, error)
	AlbumTracks(ctx context.Context, albumID string) ([]SimpleTrack, error)
	Tracks(ctx context.Context, ids []string) ([]*Track, error)
	AudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error)
	SearchArtistsAt(ctx context.Context, query string, offset int) (*Artist, error)
	UserPlaylists(ctx context.Context, userID string) ([]Playlist, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error)
}

// APIError is a non-2xx response from the catalog.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Config configures a Client. HTTPClient, when set, is used as is and no
// token flow is attached.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client talks to the Web API over resty with client-credentials auth.
type Client struct {
	http   *resty.Client
	logger *utils.Logger
}

var _ Catalog = (*Client)(nil)

// New builds a Client. ctx scopes the token source.
func New(ctx context.Context, cfg Config, logger *utils.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = spotifyauth.TokenURL
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		}
		httpClient = cc.Client(ctx)
	}

	r := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	}
	return &Client{http: r, logger: logger}
}

func (c *Client) get(ctx context.Context, path string, pathParams, query map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("catalog: GET %s: %w", path, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &APIError{Status: resp.StatusCode(), Path: path, Body: body}
	}
	return nil
}

// SearchArtists returns up to window candidates for name in the catalog's
// own relevance order.
func (c *Client) SearchArtists(ctx context.Context, name string, window int) ([]Artist, error) {
	if window < 1 {
		window = 1
	}
	if window > MaxSearchWindow {
		window = MaxSearchWindow
	}

	var out []Artist
	for offset := 0; offset < window; offset += pageSize {
		limit := min(pageSize, window-offset)
		var page searchResponse
		err := c.get(ctx, "/search", nil, map[string]string{
			"q":      `artist:"` + name + `"`,
			"type":   "artist",
			"limit":  strconv.Itoa(limit),
			"offset": strconv.Itoa(offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Artists.Items...)
		if len(page.Artists.Items) < limit || page.Artists.Next == "" {
			break
		}
	}
	c.logger.Debug("[catalog] search %q: %d candidates", name, len(out))
	return out, nil
}

// SearchArtistsAt returns the single artist the search endpoint ranks at
// offset for a raw query, or nil past the end of the results.
func (c *Client) SearchArtistsAt(ctx context.Context, query string, offset int) (*Artist, error) {
	if offset < 0 || offset >= MaxSearchWindow {
		return nil, fmt.Errorf("catalog: search offset %d outside [0,%d)", offset, MaxSearchWindow)
	}
	var page searchResponse
	err := c.get(ctx, "/search", nil, map[string]string{
		"q":      query,
		"type":   "artist",
		"limit":  "1",
		"offset": strconv.Itoa(offset),
	}, &page)
	if err != nil {
		return nil, err
	}
	if len(page.Artists.Items) == 0 {
		return nil, nil
	}
	return &page.Artists.Items[0], nil
}

// UserPlaylists pages through every playlist listed on a user's profile.
func (c *Client) UserPlaylists(ctx context.Context, userID string) ([]Playlist, error) {
	var out []Playlist
	for offset := 0; ; offset += pageSize {
		var page playlistPage
		err := c.get(ctx, "/users/{id}/playlists", map[string]string{"id": userID}, map[string]string{
			"limit":  strconv.Itoa(pageSize),
			"offset": strconv.Itoa(offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			c.logger.Debug("[catalog] %s lists %d playlists", userID, len(out))
			return out, nil
		}
	}
}

// PlaylistItems pages through every entry of a playlist.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	var out []PlaylistItem
	for offset := 0; ; offset += playlistPageSize {
		var page playlistItemPage
		err := c.get(ctx, "/playlists/{id}/tracks", map[string]string{"id": playlistID}, map[string]string{
			"limit":  strconv.Itoa(playlistPageSize),
			"offset": strconv.Itoa(offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			return out, nil
		}
	}
}

// Artists looks up to MaxIDsPerRequest artists. Unknown IDs come back as nil
// entries at their position.
func (c *Client) Artists(ctx context.Context, ids []string) ([]*Artist, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}
	var resp struct {
		Artists []*Artist `json:"artists"`
	}
	if err := c.get(ctx, "/artists", nil, map[string]string{"ids": strings.Join(ids, ",")}, &resp); err != nil {
		return nil, err
	}
	return resp.Artists, nil
}

// Releases pages through every album and single of an artist.
func (c *Client) Releases(ctx context.Context, artistID string) ([]Album, error) {
	var out []Album
	for offset := 0; ; offset += pageSize {
		var page albumPage
		err := c.get(ctx, "/artists/{id}/albums", map[string]string{"id": artistID}, map[string]string{
			"include_groups": "album,single",
			"limit":          strconv.Itoa(pageSize),
			"offset":         strconv.Itoa(offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			return out, nil
		}
	}
}

// AlbumTracks pages through the tracks of one release.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]SimpleTrack, error) {
	var out []SimpleTrack
	for offset := 0; ; offset += pageSize {
		var page trackPage
		err := c.get(ctx, "/albums/{id}/tracks", map[string]string{"id": albumID}, map[string]string{
			"limit":  strconv.Itoa(pageSize),
			"offset": strconv.Itoa(offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" || len(page.Items) == 0 {
			return out, nil
		}
	}
}

// Tracks looks up to MaxIDsPerRequest tracks; unknown IDs are nil entries.
func (c *Client) Tracks(ctx context.Context, ids []string) ([]*Track, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}
	var resp struct {
		Tracks []*Track `json:"tracks"`
	}
	if err := c.get(ctx, "/tracks", nil, map[string]string{"ids": strings.Join(ids, ",")}, &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// AudioFeatures looks up features for up to MaxIDsPerRequest tracks; tracks
// without features are nil entries.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}
	var resp struct {
		AudioFeatures []*AudioFeatures `json:"audio_features"`
	}
	if err := c.get(ctx, "/audio-features", nil, map[string]string{"ids": strings.Join(ids, ",")}, &resp); err != nil {
		return nil, err
	}
	return resp.AudioFeatures, nil
}

func checkIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("catalog: empty ID list")
	}
	if len(ids) > MaxIDsPerRequest {
		return fmt.Errorf("catalog: %d IDs exceeds the limit of %d per request", len(ids), MaxIDsPerRequest)
	}
	return nil
}
