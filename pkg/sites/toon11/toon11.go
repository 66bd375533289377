// Package toon11 scrapes 11toon viewer pages. The page itself carries no
// image markup; the image list comes from the site's JSON viewer API.
package toon11

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/scraper"
)

// Name is the site name used for registration and stored sessions
const Name = "11toon"

var contentPath = regexp.MustCompile(`^/content/(\d+)/(\d+)`)

// Adapter implements scraper.Adapter for 11toon
type Adapter struct {
	// Hosts matches the hostnames this adapter accepts
	Hosts     *regexp.Regexp
	Extractor scraper.InfoExtractor
}

// New creates the adapter for the public site
func New(extractor scraper.InfoExtractor) *Adapter {
	if extractor == nil {
		extractor = scraper.NewPatternExtractor()
	}
	return &Adapter{Hosts: regexp.MustCompile(`(^|\.)11toon\d*\.`), Extractor: extractor}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Match(u *url.URL) bool {
	if !a.Hosts.MatchString(u.Hostname()) || !contentPath.MatchString(u.Path) {
		return false
	}
	return strings.EqualFold(query(u)["page"], "toon")
}

type episodeRef struct {
	ID      jsonID `json:"ID"`
	Subject string `json:"Subject"`
}

type viewerResponse struct {
	Data struct {
		SucData struct {
			Image struct {
				File      string `json:"file"`
				ImageList string `json:"imagelist"`
			} `json:"Image"`
			PrevNext struct {
				Next episodeRef `json:"Next"`
				Prev episodeRef `json:"Prev"`
			} `json:"PrevNext"`
		} `json:"SucData"`
	} `json:"data"`
}

func (a *Adapter) Scrape(ctx context.Context, page *scraper.Page) (*scraper.Result, error) {
	m := contentPath.FindStringSubmatch(page.URL.Path)
	if m == nil {
		return nil, errs.NewPageStructureMismatch(Name, "content id")
	}
	id, parent := m[1], m[2]

	api := page.URL.ResolveReference(&url.URL{
		Path:     "/iapi/t5",
		RawQuery: url.Values{"id": {id}, "parent": {parent}, "page": {"toon"}}.Encode(),
	})

	var resp viewerResponse
	if err := page.Fetcher.GetJSON(ctx, api.String(), page.Hints(), &resp); err != nil {
		return nil, fmt.Errorf("fetch image list: %w", err)
	}

	image := resp.Data.SucData.Image
	if image.ImageList == "" {
		return nil, errs.NewPageStructureMismatch(Name, "image list")
	}
	var locations []string
	if err := json.Unmarshal([]byte(image.ImageList), &locations); err != nil {
		return nil, errs.NewPageStructureMismatch(Name, "image list")
	}
	images := make([]string, len(locations))
	for i, loc := range locations {
		images[i] = image.File + loc
	}

	subject := query(page.URL)["subject"]
	nav := resp.Data.SucData.PrevNext

	return &scraper.Result{
		MoveNext: a.move(page.URL, parent, nav.Next),
		MovePrev: a.move(page.URL, parent, nav.Prev),
		Info:     a.Extractor.Extract(subject),
		Images:   images,
	}, nil
}

func (a *Adapter) move(base *url.URL, parent string, ref episodeRef) scraper.Navigation {
	if ref.ID == "" || ref.ID == "0" {
		return scraper.BoundaryMove("")
	}
	target := base.ResolveReference(&url.URL{
		Path:     fmt.Sprintf("/content/%s/%s", ref.ID, parent),
		RawQuery: "page=toon&subject=" + url.QueryEscape(ref.Subject),
	})
	return func(context.Context) (scraper.Move, error) {
		return scraper.Move{URL: target.String()}, nil
	}
}

// query returns the URL's query parameters with lower-cased keys
func query(u *url.URL) map[string]string {
	out := make(map[string]string)
	for key, values := range u.Query() {
		if len(values) > 0 {
			out[strings.ToLower(key)] = values[0]
		}
	}
	return out
}

// jsonID accepts both numeric and string ids
type jsonID string

func (j *jsonID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*j = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*j = jsonID(s)
		return nil
	}
	*j = jsonID(data)
	return nil
}
