package scraper

import (
	"context"
	"net/url"

	"comicgrabber/pkg/fetch"
)

// Fetcher defines the HTTP operations adapters may use for secondary calls
type Fetcher interface {
	Get(ctx context.Context, rawURL string, hints fetch.Hints) (*fetch.Response, error)
	GetJSON(ctx context.Context, rawURL string, hints fetch.Hints, target interface{}) error
	PostMultipart(ctx context.Context, rawURL string, form url.Values, hints fetch.Hints, target interface{}) error
}

// Adapter extracts a Result from pages of one site
type Adapter interface {
	// Name identifies the site, also used to look up its stored session
	Name() string
	Match(u *url.URL) bool
	// Scrape is called once per page load. It must await any secondary
	// requests before returning, and fail with a page structure error rather
	// than return a partial result.
	Scrape(ctx context.Context, page *Page) (*Result, error)
}

// InfoExtractor derives title information from a raw page title
type InfoExtractor interface {
	Extract(raw string) Info
}

// SessionSource supplies stored cookies for a site
type SessionSource interface {
	Cookie(site string) string
}
