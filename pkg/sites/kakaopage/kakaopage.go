// Package kakaopage scrapes KakaoPage viewer pages.
//
// Episode metadata is embedded in the page's __NEXT_DATA__ script. The image
// list and the adjacent episodes come from the site API, which only answers
// with the reader's session cookie.
package kakaopage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/filename"
	"comicgrabber/pkg/scraper"
)

const (
	// Name is the site name used for registration and stored sessions
	Name = "kakaopage"

	// DefaultAPIBase is the API host used by the public site
	DefaultAPIBase = "https://api2-page.kakao.com"

	// LatestSentinel and OldestSentinel are the locations reported at the
	// ends of a series
	LatestSentinel = "#It_is_lasest_episode"
	OldestSentinel = "#It_is_oldest_episode"

	downloadDataPath = "/api/v1/inven/get_download_data/web"
	nextItemPath     = "/api/v5/inven/get_next_item"
	prevItemPath     = "/api/v5/inven/get_prev_item"
)

// Adapter implements scraper.Adapter for KakaoPage
type Adapter struct {
	Hosts   *regexp.Regexp
	APIBase string
}

// New creates the adapter for the public site
func New() *Adapter {
	return &Adapter{
		Hosts:   regexp.MustCompile(`(^|\.)page\.kakao\.com$`),
		APIBase: DefaultAPIBase,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Match(u *url.URL) bool {
	return a.Hosts.MatchString(u.Hostname()) && u.Query().Get("productId") != ""
}

type singleMeta struct {
	Title       string `json:"title"`
	AuthorName  string `json:"authorName"`
	SeriesTitle string `json:"seriesTitle"`
	SeriesID    jsonID `json:"seriesId"`
}

type metaHolder struct {
	SingleForMeta *singleMeta `json:"singleForMeta"`
}

type nextData struct {
	Props struct {
		InitialProps struct {
			UserAgent struct {
				Name   string `json:"name"`
				OSName string `json:"osname"`
			} `json:"userAgent"`
		} `json:"initialProps"`
		InitialState struct {
			Common struct {
				Constant struct {
					DID string `json:"did"`
				} `json:"constant"`
			} `json:"common"`
			Viewer struct {
				Viewers map[string]metaHolder `json:"viewers"`
			} `json:"viewer"`
			Product struct {
				ProductMap map[string]metaHolder `json:"productMap"`
			} `json:"product"`
		} `json:"initialState"`
	} `json:"props"`
}

type downloadData struct {
	DownloadData struct {
		Members struct {
			ServerURL string `json:"sAtsServerUrl"`
			Files     []struct {
				SecureURL string `json:"secureUrl"`
			} `json:"files"`
		} `json:"members"`
	} `json:"downloadData"`
}

type itemResponse struct {
	Item *struct {
		PID string `json:"pid"`
	} `json:"item"`
}

func (a *Adapter) Scrape(ctx context.Context, page *scraper.Page) (*scraper.Result, error) {
	raw := strings.TrimSpace(page.Document.Find("#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil, errs.NewPageStructureMismatch(Name, "__NEXT_DATA__")
	}
	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, errs.NewPageStructureMismatch(Name, "__NEXT_DATA__")
	}

	productID := page.URL.Query().Get("productId")
	state := data.Props.InitialState
	meta := state.Viewer.Viewers[productID].SingleForMeta
	if meta == nil {
		meta = state.Product.ProductMap[productID].SingleForMeta
	}
	if meta == nil {
		return nil, errs.NewPageStructureMismatch(Name, "singleForMeta")
	}

	deviceID := state.Common.Constant.DID
	ua := data.Props.InitialProps.UserAgent
	client := fmt.Sprintf("%s - %s", ua.OSName, ua.Name)

	var dl downloadData
	form := url.Values{
		"productId":      {productID},
		"device_mgr_uid": {client},
		"device_model":   {client},
		"deviceId":       {deviceID},
	}
	if err := page.Fetcher.PostMultipart(ctx, a.APIBase+downloadDataPath, form, page.Hints(), &dl); err != nil {
		return nil, fmt.Errorf("fetch download data: %w", err)
	}
	members := dl.DownloadData.Members
	if len(members.Files) == 0 {
		return nil, errs.NewPageStructureMismatch(Name, "download data")
	}
	images := make([]string, len(members.Files))
	for i, f := range members.Files {
		images[i] = members.ServerURL + f.SecureURL
	}

	itemForm := url.Values{
		"singlePid": {productID},
		"seriesPid": {string(meta.SeriesID)},
		"deviceId":  {deviceID},
	}

	return &scraper.Result{
		MoveNext: a.move(page, nextItemPath, itemForm, LatestSentinel),
		MovePrev: a.move(page, prevItemPath, itemForm, OldestSentinel),
		Info: scraper.Info{
			Raw:     filename.Sanitize(meta.Title),
			Title:   filename.Sanitize(fmt.Sprintf("%s (%s)", meta.SeriesTitle, meta.AuthorName)),
			Episode: filename.Sanitize(strings.Replace(meta.Title, meta.SeriesTitle, "", 1)),
		},
		Images: images,
	}, nil
}

func (a *Adapter) move(page *scraper.Page, path string, form url.Values, sentinel string) scraper.Navigation {
	return func(ctx context.Context) (scraper.Move, error) {
		var resp itemResponse
		if err := page.Fetcher.PostMultipart(ctx, a.APIBase+path, form, page.Hints(), &resp); err != nil {
			return scraper.Move{}, fmt.Errorf("fetch adjacent episode: %w", err)
		}
		if resp.Item == nil || resp.Item.PID == "" {
			return scraper.Move{URL: sentinel, Boundary: true}, nil
		}

		target := *page.URL
		target.RawQuery = "productId=" + strings.TrimPrefix(resp.Item.PID, "p")
		target.Fragment = ""
		return scraper.Move{URL: target.String()}, nil
	}
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
