package marumaru

import (
	"bytes"
	"context"
	"net/url"
	"testing"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/scraper"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPage(t *testing.T, rawURL, html string) *scraper.Page {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	require.NoError(t, err)
	return &scraper.Page{URL: u, Body: []byte(html), Document: doc}
}

const chapter = `<html><head>
<meta name="title" content=" Blade Song 41화 ">
</head><body>
<div class="w_banner">ad</div>
<a href="/bbs/cmoic/1001"><i class="chapter_prev fa fa-chevron-circle-left"></i></a>
<a class="chapter_prev fa fa-chevron-circle-right" href="/bbs/cmoic/1003"></a>
<div class="view-img">
  <img src="/data/file/1.jpg">
  <img data-src="https://cdn.example/2.jpg" src="/img/loading.gif">
  <img src="https://cdn.example/3.png">
</div>
</body></html>`

func TestScrapeChapter(t *testing.T) {
	page := newPage(t, "https://marumaru.example/bbs/cmoic/1002", chapter)

	result, err := New(nil).Scrape(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://marumaru.example/data/file/1.jpg",
		"https://cdn.example/2.jpg",
		"https://cdn.example/3.png",
	}, result.Images)
	assert.Equal(t, "Blade Song", result.Info.Title)
	assert.Equal(t, "41화", result.Info.Episode)

	next, err := result.MoveNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scraper.Move{URL: "https://marumaru.example/bbs/cmoic/1003"}, next)

	prev, err := result.MovePrev(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scraper.Move{URL: "https://marumaru.example/bbs/cmoic/1001"}, prev)
}

func TestFirstChapterHasNoPrevious(t *testing.T) {
	html := `<html><body>
<a class="chapter_prev fa fa-chevron-circle-right" href="/bbs/cmoic/2"></a>
<div class="view-img"><img src="/1.jpg"></div></body></html>`
	result, err := New(nil).Scrape(context.Background(), newPage(t, "https://marumaru.example/bbs/cmoic/1", html))
	require.NoError(t, err)

	prev, err := result.MovePrev(context.Background())
	require.NoError(t, err)
	assert.True(t, prev.Boundary)

	// no title meta leaves info empty rather than failing
	assert.Empty(t, result.Info.Title)
}

func TestNoImagesIsStructureMismatch(t *testing.T) {
	_, err := New(nil).Scrape(context.Background(), newPage(t, "https://marumaru.example/x", `<html><body></body></html>`))
	assert.True(t, errs.IsType(err, errs.ErrorTypePageStructure))
}

func TestMatch(t *testing.T) {
	a := New(nil)
	for raw, want := range map[string]bool{
		"https://marumaru.example/bbs/cmoic/1":   true,
		"https://www.marumaru250.com/bbs/cmoic/1": true,
		"https://example.com/marumaru":           false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, a.Match(u), raw)
	}
}
