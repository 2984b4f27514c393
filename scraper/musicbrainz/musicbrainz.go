package musicbrainz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"artist-census/utils"
)

const (
	defaultBaseURL = "https://musicbrainz.org"
	// PageSize is the largest page the search endpoint serves.
	PageSize = 100
)

// Options configures the client.
type Options struct {
	BaseURL    string
	UserAgent  string
	MaxRetries int
	// RateLimitMs spaces requests; the public service allows about one per second.
	RateLimitMs int
	Timeout     time.Duration
}

// Client pages through the open artist catalog to collect names to look up.
type Client struct {
	http   *resty.Client
	pacer  *utils.Pacer
	retry  *utils.RetryConfig
	logger *utils.Logger
}

type artistPage struct {
	Count   int `json:"count"`
	Offset  int `json:"offset"`
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
}

func New(opts Options, logger *utils.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "artist-census/1.0"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:  r,
		pacer: utils.NewPacer(time.Duration(opts.RateLimitMs) * time.Millisecond),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// FetchPage returns the artist names of one page. total is the size of the
// whole catalog as reported by the service.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (names []string, total int, err error) {
	if limit < 1 || limit > PageSize {
		limit = PageSize
	}

	var page artistPage
	err = c.retry.Do(ctx, fmt.Sprintf("musicbrainz offset %d", offset), func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"query":  "*",
				"limit":  strconv.Itoa(limit),
				"offset": strconv.Itoa(offset),
				"fmt":    "json",
			}).
			SetResult(&page).
			Get("/ws/2/artist")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("musicbrainz: status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	names = make([]string, 0, len(page.Artists))
	for _, a := range page.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names, page.Count, nil
}

// Collect pages from offset until count names were read or the catalog
// runs out. count <= 0 reads to the end. Each page is handed to sink before
// the next is requested.
func (c *Client) Collect(ctx context.Context, offset, count int, sink func(names []string) error) (int, error) {
	read := 0
	for count <= 0 || read < count {
		limit := PageSize
		if count > 0 {
			limit = min(PageSize, count-read)
		}
		names, total, err := c.FetchPage(ctx, offset, limit)
		if err != nil {
			return read, err
		}
		if err := sink(names); err != nil {
			return read, err
		}
		read += len(names)
		offset += limit
		c.logger.Info("[musicbrainz] %d names read (offset %d of %d)", read, offset, total)

		if len(names) < limit || offset >= total {
			break
		}
	}
	return read, nil
}
