// Package marumaru scrapes marumaru chapter pages directly from their markup
package marumaru

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/scraper"

	"github.com/PuerkitoBio/goquery"
)

// Name is the site name used for registration and stored sessions
const Name = "marumaru"

const (
	imageSelector = ".view-img img"
	titleSelector = "meta[name=title]"
	nextSelector  = ".chapter_prev.fa-chevron-circle-right"
	prevSelector  = ".chapter_prev.fa-chevron-circle-left"
)

// Adapter implements scraper.Adapter for marumaru
type Adapter struct {
	Hosts     *regexp.Regexp
	Extractor scraper.InfoExtractor
}

// New creates the adapter for the public site
func New(extractor scraper.InfoExtractor) *Adapter {
	if extractor == nil {
		extractor = scraper.NewPatternExtractor()
	}
	return &Adapter{Hosts: regexp.MustCompile(`(^|\.)marumaru[^.]*\.`), Extractor: extractor}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Match(u *url.URL) bool {
	return a.Hosts.MatchString(u.Hostname())
}

func (a *Adapter) Scrape(ctx context.Context, page *scraper.Page) (*scraper.Result, error) {
	doc := page.Document

	var images []string
	doc.Find(imageSelector).Each(func(_ int, s *goquery.Selection) {
		src := attr(s, "data-src", "src")
		if src == "" {
			return
		}
		if ref, err := url.Parse(src); err == nil {
			src = page.URL.ResolveReference(ref).String()
		}
		images = append(images, src)
	})
	if len(images) == 0 {
		return nil, errs.NewPageStructureMismatch(Name, imageSelector)
	}

	raw, _ := doc.Find(titleSelector).First().Attr("content")

	return &scraper.Result{
		MoveNext: link(page.URL, doc.Find(nextSelector).First()),
		MovePrev: link(page.URL, doc.Find(prevSelector).First()),
		Info:     a.Extractor.Extract(raw),
		Images:   images,
	}, nil
}

// link follows the chapter chevron s, which is either an anchor or sits
// inside one. A missing chevron marks the end of the series.
func link(base *url.URL, s *goquery.Selection) scraper.Navigation {
	if s.Length() == 0 {
		return scraper.BoundaryMove("")
	}
	href := attr(s, "href")
	if href == "" {
		href = attr(s.Closest("a"), "href")
	}
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return scraper.BoundaryMove("")
	}

	ref, err := url.Parse(href)
	if err != nil {
		return scraper.BoundaryMove("")
	}
	target := base.ResolveReference(ref).String()
	return func(context.Context) (scraper.Move, error) {
		return scraper.Move{URL: target}, nil
	}
}

// attr returns the first non-empty attribute among names
func attr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
