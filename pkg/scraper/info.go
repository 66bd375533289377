package scraper

import (
	"regexp"
	"strings"
)

// EpisodePattern splits a raw title such as "Some Title 12화" into its title
// and episode parts. Short stories ("단편"), specials ("번외", "특별"), "#n"
// and "stage n" forms are recognised as episodes too.
var EpisodePattern = regexp.MustCompile(
	`(?i)^(?P<title>.+?|(?:[\(\[]?단편[\]?\)]?.+?))\s*(?P<episode>(?:\d[.\d\s\-~화권전후편]+|(?:번외|특별).+)|(?:#\d+)|(?:stage\s*\d+))`)

// PatternExtractor fills Info from the named groups of a regular expression.
// The groups "title" and "episode" map to the matching fields; any other
// named group goes into Extra.
type PatternExtractor struct {
	Pattern *regexp.Regexp
}

// NewPatternExtractor returns an extractor using EpisodePattern
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{Pattern: EpisodePattern}
}

// Extract never fails. A raw title that does not match becomes the title.
func (e *PatternExtractor) Extract(raw string) Info {
	raw = strings.TrimSpace(raw)
	info := Info{Raw: raw}

	pattern := e.Pattern
	if pattern == nil {
		pattern = EpisodePattern
	}

	match := pattern.FindStringSubmatch(raw)
	if match == nil {
		info.Title = raw
		return info
	}

	for i, name := range pattern.SubexpNames() {
		if name == "" || i >= len(match) {
			continue
		}
		value := strings.TrimSpace(match[i])
		switch name {
		case "title":
			info.Title = value
		case "episode":
			info.Episode = value
		default:
			if info.Extra == nil {
				info.Extra = make(map[string]string)
			}
			info.Extra[name] = value
		}
	}
	if info.Title == "" {
		info.Title = raw
	}
	return info
}
