package spotifyweb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"artist-census/utils"
)

const defaultBaseURL = "https://open.spotify.com"

// Options configures the headless browser.
type Options struct {
	BaseURL     string
	ChromeBin   string
	RateLimitMs int
	MaxRetries  int
	PageTimeout time.Duration
}

// Scraper reads public artist pages in a headless browser. Only the values
// the catalog API does not expose are read: monthly listeners and the bio.
type Scraper struct {
	baseURL     string
	pageTimeout time.Duration
	logger      *utils.Logger
	pacer       *utils.Pacer
	retry       *utils.RetryConfig

	browser context.Context
	cancel  context.CancelFunc
}

// New starts a browser. Close must be called to stop it.
func New(opts Options, logger *utils.Logger) *Scraper {
	chromeBin := findChromeBinary(opts.ChromeBin)
	logger.Info("[spotifyweb] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise
	browser, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Scraper{
		baseURL:     strings.TrimRight(baseURL, "/"),
		pageTimeout: timeout,
		logger:      logger,
		pacer:       utils.NewPacer(time.Duration(opts.RateLimitMs) * time.Millisecond),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		browser: browser,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}
}

// Close stops the browser.
func (s *Scraper) Close() {
	s.cancel()
}

const listenersJS = `
(function() {
	var el = document.querySelector('[data-testid="monthly-listeners-label"]');
	if (el) return el.innerText || el.textContent || '';
	var spans = document.querySelectorAll('span, div');
	for (var i = 0; i < spans.length; i++) {
		var t = spans[i].innerText || '';
		if (/monthly listeners?$/i.test(t.trim()) && t.length < 64) return t;
	}
	return '';
})()
`

const bioJS = `
(function() {
	var selectors = [
		'[data-testid="about-card"]',
		'[data-testid="artist-about-card"]',
		'section[aria-label*="About"]'
	];
	for (var i = 0; i < selectors.length; i++) {
		var el = document.querySelector(selectors[i]);
		if (el && el.innerText) return el.innerText.trim();
	}
	return '';
})()
`

// MonthlyListeners reads the listener count of an artist page. found is
// false when the page loaded but carried no count.
func (s *Scraper) MonthlyListeners(ctx context.Context, artistID string) (count int, found bool, err error) {
	text, err := s.evaluate(ctx, "/artist/"+artistID, listenersJS)
	if err != nil {
		return 0, false, err
	}
	count, found = ParseListeners(text)
	return count, found, nil
}

// Bio returns the text of an artist's about section, or "" if it has none.
func (s *Scraper) Bio(ctx context.Context, artistID string) (string, error) {
	return s.evaluate(ctx, "/artist/"+artistID, bioJS)
}

func (s *Scraper) evaluate(ctx context.Context, path, js string) (string, error) {
	url := s.baseURL + path
	var out string

	err := s.retry.Do(ctx, "load "+path, func() error {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}

		tab, cancelTab := chromedp.NewContext(s.browser)
		defer cancelTab()
		stop := context.AfterFunc(ctx, cancelTab)
		defer stop()

		tab, cancelTimeout := context.WithTimeout(tab, s.pageTimeout)
		defer cancelTimeout()

		var text string
		err := chromedp.Run(tab,
			chromedp.Navigate(url),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(js, &text),
		)
		if err != nil {
			return fmt.Errorf("chromedp %s: %w", url, err)
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("[spotifyweb] %s: %d chars", path, len(out))
	return out, nil
}

var listenersPattern = regexp.MustCompile(`(?i)([\d][\d,.\s]*)\s*monthly\s+listeners?`)

// ParseListeners extracts the count from text like "1,234,567 monthly listeners".
func ParseListeners(text string) (int, bool) {
	m := listenersPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary(override string) string {
	if override != "" {
		return override
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
