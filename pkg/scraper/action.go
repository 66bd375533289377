package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"comicgrabber/pkg/job"
	"comicgrabber/pkg/router"
)

// ActionScrape is the router action that scrapes a page without downloading
const ActionScrape = "scrape"

// ScrapeRequest is the data of a scrape action
type ScrapeRequest struct {
	URL string `json:"url"`
	// Site forces an adapter instead of matching the URL
	Site string `json:"site,omitempty"`
	// Navigate resolves the adjacent episodes, which may cost extra requests
	Navigate bool `json:"navigate,omitempty"`
}

// MoveSummary is a resolved navigation action
type MoveSummary struct {
	URL      string `json:"url"`
	Boundary bool   `json:"boundary"`
}

// PageSummary is the JSON form of a Result
type PageSummary struct {
	Title     string            `json:"title"`
	Episode   string            `json:"episode"`
	Raw       string            `json:"raw"`
	Extra     map[string]string `json:"extra,omitempty"`
	Images    []string          `json:"images"`
	SourceURI string            `json:"uri"`
	Filename  string            `json:"filename"`
	Next      *MoveSummary      `json:"next,omitempty"`
	Prev      *MoveSummary      `json:"prev,omitempty"`
}

// Summarize converts r to its JSON form. With navigate set both navigation
// actions are evaluated.
func Summarize(ctx context.Context, r *Result, navigate bool) (*PageSummary, error) {
	s := &PageSummary{
		Title:     r.Info.Title,
		Episode:   r.Info.Episode,
		Raw:       r.Info.Raw,
		Extra:     r.Info.Extra,
		Images:    r.Images,
		SourceURI: r.SourceURI,
		Filename:  Filename(r.Info),
	}
	if !navigate {
		return s, nil
	}

	next, err := r.MoveNext(ctx)
	if err != nil {
		return nil, fmt.Errorf("move next: %w", err)
	}
	prev, err := r.MovePrev(ctx)
	if err != nil {
		return nil, fmt.Errorf("move prev: %w", err)
	}
	s.Next = &MoveSummary{URL: next.URL, Boundary: next.Boundary}
	s.Prev = &MoveSummary{URL: prev.URL, Boundary: prev.Boundary}
	return s, nil
}

// Request builds the download job for a summarized page
func (s *PageSummary) Request(policy job.ConflictPolicy) job.Request {
	return job.Request{
		Filename:       s.Filename,
		ConflictPolicy: policy,
		Images:         s.Images,
		SourceURI:      s.SourceURI,
		Referer:        s.SourceURI,
	}
}

// Register binds the scrape action on r
func (l *Loader) Register(r *router.Router) {
	r.Handle(ActionScrape, func(ctx context.Context, data json.RawMessage, _ *router.Replier) (interface{}, error) {
		var req ScrapeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid scrape request: %w", err)
		}
		if req.URL == "" {
			return nil, errors.New("invalid scrape request: url is required")
		}

		var (
			res *Result
			err error
		)
		if req.Site != "" {
			res, err = l.LoadSite(ctx, req.Site, req.URL)
		} else {
			res, err = l.Load(ctx, req.URL)
		}
		if err != nil {
			return nil, err
		}
		return Summarize(ctx, res, req.Navigate)
	})
}
