package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/fetch"
	"comicgrabber/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// Loader fetches a page and runs the adapter registered for it
type Loader struct {
	registry *Registry
	fetcher  Fetcher
	sessions SessionSource
	logger   logger.Logger
}

// NewLoader creates a loader. sessions may be nil.
func NewLoader(reg *Registry, fetcher Fetcher, sessions SessionSource, log logger.Logger) *Loader {
	return &Loader{
		registry: reg,
		fetcher:  fetcher,
		sessions: sessions,
		logger:   logger.OrDefault(log).WithField("component", "loader"),
	}
}

// Load scrapes pageURL. The returned result always has both navigation
// actions set and carries the page as its source URI.
func (l *Loader) Load(ctx context.Context, pageURL string) (*Result, error) {
	u, err := parsePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	adapter, ok := l.registry.Lookup(u)
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("no adapter for %s", u.Host))
	}
	return l.load(ctx, adapter, u, pageURL)
}

// LoadSite scrapes pageURL with the named adapter, skipping URL matching
func (l *Loader) LoadSite(ctx context.Context, site, pageURL string) (*Result, error) {
	u, err := parsePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	adapter, ok := l.registry.Get(site)
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("unknown site %q", site))
	}
	return l.load(ctx, adapter, u, pageURL)
}

func parsePageURL(pageURL string) (*url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("invalid page URL %q", pageURL))
	}
	return u, nil
}

func (l *Loader) load(ctx context.Context, adapter Adapter, u *url.URL, pageURL string) (*Result, error) {
	log := l.logger.WithFields(map[string]interface{}{
		"site": adapter.Name(),
		"url":  pageURL,
	})

	var cookie string
	if l.sessions != nil {
		cookie = l.sessions.Cookie(adapter.Name())
	}

	resp, err := l.fetcher.Get(ctx, pageURL, fetch.Hints{Cookie: cookie})
	if err != nil {
		log.WithError(err).Error("Failed to fetch page")
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "parse html", err)
	}

	page := &Page{URL: u, Body: resp.Body, Document: doc, Cookie: cookie, Fetcher: l.fetcher}
	result, err := adapter.Scrape(ctx, page)
	if err != nil {
		log.WithError(err).Warn("Adapter could not parse page")
		return nil, err
	}
	if result == nil {
		return nil, errs.NewPageStructureMismatch(adapter.Name(), "result")
	}

	if result.MoveNext == nil {
		result.MoveNext = BoundaryMove("")
	}
	if result.MovePrev == nil {
		result.MovePrev = BoundaryMove("")
	}
	result.SourceURI = pageURL

	log.InfoWithFields("Page scraped", map[string]interface{}{
		"title":   result.Info.Title,
		"episode": result.Info.Episode,
		"images":  len(result.Images),
	})
	return result, nil
}
