// Package filename turns scraped titles into safe path segments and checks
// the relative paths handed to a download host.
package filename

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
)

var fullWidth = strings.NewReplacer(
	"!", "！",
	"?", "？",
	"/", "／",
	"\\", "＼",
	":", "：",
	"~", "～",
	"<", "＜",
	">", "＞",
	"|", "｜",
	"\"", "＂",
	"*", "＊",
)

var (
	spaces   = regexp.MustCompile(`\s+`)
	leading  = regexp.MustCompile(`^[\s.\-~]+`)
	trailing = regexp.MustCompile(`[\s.]+$`)
)

// Sanitize rewrites s into a single path segment: characters that file
// systems reject become their full-width forms, runs of whitespace collapse
// to one space, and leading dots, dashes and tildes are dropped
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, "\u200b", "")
	s = spaces.ReplaceAllString(s, " ")
	s = leading.ReplaceAllString(s, "")
	s = trailing.ReplaceAllString(s, "")
	return fullWidth.Replace(s)
}

// Join sanitizes each segment and joins them with forward slashes, skipping
// segments that sanitize to nothing
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if clean := Sanitize(seg); clean != "" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, "/")
}

const illegal = `<>:"|?*\`

// Validate checks a relative download path. Forward slashes separate
// directories; everything else a file system could refuse is an error.
func Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty filename")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("absolute path not allowed")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("control character %U not allowed", r)
		}
		if strings.ContainsRune(illegal, r) {
			return fmt.Errorf("character %q not allowed", r)
		}
	}
	for _, seg := range strings.Split(name, "/") {
		switch {
		case seg == "":
			return fmt.Errorf("empty path segment")
		case seg == "." || seg == "..":
			return fmt.Errorf("relative segment %q not allowed", seg)
		case strings.TrimSpace(seg) != seg:
			return fmt.Errorf("segment %q has surrounding whitespace", seg)
		case strings.HasSuffix(seg, "."):
			return fmt.Errorf("segment %q ends with a dot", seg)
		}
	}
	if path.Clean(name) != name {
		return fmt.Errorf("path is not canonical")
	}
	return nil
}
