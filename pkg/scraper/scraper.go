package scraper

import (
	"context"
	"net/url"

	"comicgrabber/pkg/fetch"
	"comicgrabber/pkg/filename"
	"comicgrabber/pkg/job"

	"github.com/PuerkitoBio/goquery"
)

// Page is a loaded document handed to an adapter
type Page struct {
	URL      *url.URL
	Body     []byte
	Document *goquery.Document
	// Cookie is the stored session cookie for the adapter's site, if any
	Cookie  string
	Fetcher Fetcher
}

// Hints returns transport hints for secondary requests made on behalf of
// this page
func (p *Page) Hints() fetch.Hints {
	return fetch.Hints{Referer: p.URL.String(), Cookie: p.Cookie}
}

// Move is where a navigation action leads
type Move struct {
	URL string
	// Boundary is set at the first or last episode. URL may then hold a
	// sentinel such as a fragment-only location.
	Boundary bool
}

// Navigation is a lazily evaluated move to an adjacent episode
type Navigation func(ctx context.Context) (Move, error)

// BoundaryMove returns a Navigation that always reports a sequence boundary
func BoundaryMove(sentinel string) Navigation {
	return func(context.Context) (Move, error) {
		return Move{URL: sentinel, Boundary: true}, nil
	}
}

// Info is the title information of an episode
type Info struct {
	Raw     string
	Title   string
	Episode string
	Extra   map[string]string
}

// Result is everything an adapter extracts from one page
type Result struct {
	MoveNext Navigation
	MovePrev Navigation
	Info     Info
	// Images lists every image of the current episode in reading order
	Images []string
	// SourceURI is the page the result was scraped from; set by the Loader
	SourceURI string
}

// Filename builds the archive path for info: "title/episode.zip" when both
// parts are known, otherwise a single sanitised segment
func Filename(info Info) string {
	var name string
	switch {
	case info.Title != "" && info.Episode != "":
		name = filename.Join(info.Title, info.Episode)
	case info.Title != "":
		name = filename.Sanitize(info.Title)
	default:
		name = filename.Sanitize(info.Raw)
	}
	if name == "" {
		name = "untitled"
	}
	return name + ".zip"
}

// Request builds the download job for r. The page itself is used as the
// referer for image requests.
func (r *Result) Request(policy job.ConflictPolicy) job.Request {
	return job.Request{
		Filename:       Filename(r.Info),
		ConflictPolicy: policy,
		Images:         append([]string(nil), r.Images...),
		SourceURI:      r.SourceURI,
		Referer:        r.SourceURI,
	}
}
