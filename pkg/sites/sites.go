// Package sites registers the built-in site adapters
package sites

import (
	"comicgrabber/pkg/scraper"
	"comicgrabber/pkg/sites/kakaopage"
	"comicgrabber/pkg/sites/marumaru"
	"comicgrabber/pkg/sites/toon11"
)

// Deps configures the built-in adapters
type Deps struct {
	// Extractor parses titles for sites that expose only a raw title string.
	// Nil selects scraper.EpisodePattern.
	Extractor scraper.InfoExtractor
	// KakaoAPIBase overrides the KakaoPage API host
	KakaoAPIBase string
}

// Register adds every built-in adapter to reg
func Register(reg *scraper.Registry, deps Deps) error {
	kakao := kakaopage.New()
	if deps.KakaoAPIBase != "" {
		kakao.APIBase = deps.KakaoAPIBase
	}

	for _, a := range []scraper.Adapter{
		toon11.New(deps.Extractor),
		kakao,
		marumaru.New(deps.Extractor),
	} {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Names lists the built-in site names
func Names() []string {
	return []string{toon11.Name, kakaopage.Name, marumaru.Name}
}
