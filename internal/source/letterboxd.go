// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/metrics"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

const (
	defaultBaseURL   = "https://letterboxd.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// LetterboxdClient scrapes a user's rated films from their public
// Letterboxd profile. It implements Source.
//
// Requests carry a browser User-Agent and are paced by a politeness limiter
// (one page per second by default) so a multi-page fetch does not hammer
// the site.
type LetterboxdClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// LetterboxdOption configures a LetterboxdClient.
type LetterboxdOption func(*LetterboxdClient)

// WithBaseURL points the client at a different host. Tests use this with
// httptest servers.
func WithBaseURL(url string) LetterboxdOption {
	return func(c *LetterboxdClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) LetterboxdOption {
	return func(c *LetterboxdClient) {
		c.client = hc
	}
}

// WithPageInterval sets the minimum interval between page requests.
// Zero disables pacing.
func WithPageInterval(d time.Duration) LetterboxdOption {
	return func(c *LetterboxdClient) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewLetterboxdClient creates a scraper client with a 10s request timeout
// and a one-page-per-second politeness limiter.
func NewLetterboxdClient(opts ...LetterboxdOption) *LetterboxdClient {
	c := &LetterboxdClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exists probes the user's profile page. A 404 means the user does not
// exist; transport failures map to ErrSourceUnreachable.
func (c *LetterboxdClient) Exists(ctx context.Context, username string) (bool, error) {
	url := fmt.Sprintf("%s/%s/", c.baseURL, username)

	resp, err := c.get(ctx, url)
	if err != nil {
		return false, fmt.Errorf("%w: probing %s: %v", ErrSourceUnreachable, username, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: profile probe returned %d", ErrSourceUnreachable, resp.StatusCode)
	}
}

// FetchRatings walks the user's films-by-date pages and collects rated
// films. Scanning stops at pageLimit pages or at the first page with no
// film posters. Unrated films are skipped.
func (c *LetterboxdClient) FetchRatings(ctx context.Context, username string, pageLimit int) ([]models.RatingEntry, error) {
	if pageLimit <= 0 {
		pageLimit = 5
	}

	var entries []models.RatingEntry
	for page := 1; page <= pageLimit; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
		}

		url := fmt.Sprintf("%s/%s/films/by/date/page/%d/", c.baseURL, username, page)
		pageEntries, err := c.fetchPage(ctx, url, username, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// Later pages failing is a partial result, not a dead source.
			logging.Warn().Err(err).Str("username", username).Int("page", page).Msg("aborting scrape on page error")
			break
		}
		if len(pageEntries) == 0 {
			break
		}
		entries = append(entries, pageEntries...)
		metrics.ScrapePagesTotal.Inc()
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRatings, username)
	}
	return entries, nil
}

// fetchPage retrieves and parses one films page.
func (c *LetterboxdClient) fetchPage(ctx context.Context, url, username string, page int) ([]models.RatingEntry, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d for %s: %v", ErrSourceUnreachable, page, username, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if page == 1 {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: page %d returned %d", ErrSourceUnreachable, page, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing page %d: %v", ErrSourceUnreachable, page, err)
	}

	var entries []models.RatingEntry
	doc.Find("li.poster-container").Each(func(_ int, sel *goquery.Selection) {
		title, ok := sel.Find("img").Attr("alt")
		if !ok || title == "" {
			return
		}
		slug, ok := sel.Find("div.film-poster").Attr("data-film-slug")
		if !ok || slug == "" {
			slug = models.Slugify(title)
		}
		rating := ParseStars(sel.Find("span.rating").Text())
		if rating == 0 {
			// Watched but unrated.
			return
		}
		entries = append(entries, models.RatingEntry{Slug: slug, Title: title, Rating: rating})
	})
	return entries, nil
}

func (c *LetterboxdClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.client.Do(req)
}

// ParseStars decodes a Letterboxd star glyph rating ("★★★★½") into the
// numeric 0.5-5.0 scale. Unknown or empty text yields 0.
func ParseStars(text string) float64 {
	var rating float64
	for _, r := range strings.TrimSpace(text) {
		switch r {
		case '★':
			rating++
		case '½':
			rating += 0.5
		}
	}
	return rating
}
